package main

import (
	"log"
	"os"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "pmo:pmo@tcp(localhost:3306)/pmo_go?parseTime=true&multiStatements=true&loc=Local"
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get DB: %v", err)
	}

	sql := `
	CREATE TABLE IF NOT EXISTS bookings (
	  id CHAR(36) NOT NULL,
	  property_id CHAR(36) NOT NULL,
	  owner_id CHAR(36) NOT NULL,
	  user_id CHAR(36) NULL,
	  kind VARCHAR(16) NOT NULL,
	  status VARCHAR(16) NOT NULL,
	  contact_name VARCHAR(255) NOT NULL,
	  contact_email VARCHAR(255) NOT NULL,
	  contact_phone VARCHAR(32) NOT NULL,
	  scheduled_date DATE NULL,
	  scheduled_time VARCHAR(8) NULL,
	  offer_amount DECIMAL(18,2) NULL,
	  financing_type VARCHAR(32) NULL,
	  check_in_date DATE NULL,
	  check_out_date DATE NULL,
	  guests INT NULL,
	  lease_months INT NULL,
	  move_in_date DATE NULL,
	  payment_amount DECIMAL(18,2) NULL,
	  currency CHAR(3) NULL,
	  payment_status VARCHAR(32) NULL,
	  cancel_reason VARCHAR(255) NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_bookings_property_id (property_id),
	  KEY ix_bookings_owner_id (owner_id),
	  KEY ix_bookings_user_id (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS booking_events (
	  id CHAR(36) NOT NULL,
	  booking_id CHAR(36) NOT NULL,
	  actor_user_id CHAR(36) NOT NULL,
	  actor_role VARCHAR(16) NOT NULL,
	  action VARCHAR(32) NOT NULL,
	  from_status VARCHAR(16) NOT NULL,
	  to_status VARCHAR(16) NOT NULL,
	  note VARCHAR(255) NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_booking_events_booking_id (booking_id),
	  CONSTRAINT fk_booking_events_booking FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS payments (
	  id CHAR(36) NOT NULL,
	  user_id CHAR(36) NULL,
	  property_id CHAR(36) NULL,
	  booking_id CHAR(36) NULL,
	  ticket_id CHAR(36) NULL,
	  refund_of_id CHAR(36) NULL,
	  type VARCHAR(16) NOT NULL,
	  status VARCHAR(16) NOT NULL,
	  method VARCHAR(16) NOT NULL,
	  amount DECIMAL(18,2) NOT NULL,
	  currency CHAR(3) NOT NULL,
	  provider VARCHAR(64) NOT NULL,
	  transaction_ref VARCHAR(64) NOT NULL,
	  external_ref VARCHAR(128) NULL,
	  idempotency_key VARCHAR(64) NOT NULL,
	  escrow TINYINT(1) NOT NULL DEFAULT 0,
	  failure_reason VARCHAR(255) NULL,
	  receipt_number VARCHAR(32) NULL,
	  completed_at DATETIME(3) NULL,
	  refunded_amount DECIMAL(18,2) NULL,
	  refunded_at DATETIME(3) NULL,
	  refund_reason VARCHAR(255) NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_payments_transaction_ref (transaction_ref),
	  UNIQUE KEY ux_payments_receipt_number (receipt_number),
	  KEY ix_payments_user_id (user_id),
	  KEY ix_payments_booking_id (booking_id),
	  KEY ix_payments_ticket_id (ticket_id),
	  KEY ix_payments_refund_of_id (refund_of_id),
	  KEY ix_payments_external_ref (external_ref),
	  KEY ix_payments_booking_idem (booking_id, idempotency_key),
	  CONSTRAINT fk_payments_booking FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS payment_methods (
	  id CHAR(36) NOT NULL,
	  user_id CHAR(36) NOT NULL,
	  method VARCHAR(16) NOT NULL,
	  last4 CHAR(4) NULL,
	  phone_number VARCHAR(32) NULL,
	  bank_name VARCHAR(64) NULL,
	  is_default TINYINT(1) NOT NULL DEFAULT 0,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_payment_methods_user_id (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS provider_events (
	  id CHAR(36) NOT NULL,
	  provider VARCHAR(64) NOT NULL,
	  event_id VARCHAR(128) NOT NULL,
	  event_type VARCHAR(64) NOT NULL,
	  payload_json JSON NOT NULL,
	  received_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  processed_at DATETIME(3) NULL,
	  process_error VARCHAR(255) NULL,
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_provider_events_provider_event (provider, event_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS financial_entries (
	  id CHAR(36) NOT NULL,
	  booking_id CHAR(36) NULL,
	  event VARCHAR(32) NOT NULL,
	  amount DECIMAL(18,2) NOT NULL,
	  currency CHAR(3) NOT NULL,
	  ref_type VARCHAR(16) NOT NULL,
	  ref_id CHAR(36) NOT NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_fin_entries_booking_id (booking_id),
	  KEY ix_fin_entries_ref (ref_type, ref_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS maintenance_tickets (
	  id CHAR(36) NOT NULL,
	  property_id CHAR(36) NOT NULL,
	  client_id CHAR(36) NOT NULL,
	  provider_id CHAR(36) NULL,
	  title VARCHAR(255) NOT NULL,
	  description TEXT NULL,
	  status VARCHAR(16) NOT NULL,
	  amount DECIMAL(18,2) NULL,
	  currency CHAR(3) NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_tickets_property_id (property_id),
	  KEY ix_tickets_client_id (client_id),
	  KEY ix_tickets_provider_id (provider_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS service_providers (
	  id CHAR(36) NOT NULL,
	  display_name VARCHAR(255) NOT NULL,
	  is_verified TINYINT(1) NOT NULL DEFAULT 0,
	  is_kyc_verified TINYINT(1) NOT NULL DEFAULT 0,
	  verified_at DATETIME(3) NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS verification_requests (
	  id CHAR(36) NOT NULL,
	  provider_id CHAR(36) NOT NULL,
	  status VARCHAR(16) NOT NULL,
	  documents JSON NOT NULL,
	  rejection_reason VARCHAR(255) NULL,
	  reviewed_by CHAR(36) NULL,
	  reviewed_at DATETIME(3) NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_verification_requests_provider_id (provider_id),
	  CONSTRAINT fk_verification_requests_provider FOREIGN KEY (provider_id) REFERENCES service_providers(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	if _, err := sqlDB.Exec(sql); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	log.Println("✓ lifecycle tables created successfully")
}
