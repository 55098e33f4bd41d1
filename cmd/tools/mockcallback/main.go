package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/providers/mockpay"
)

type callbackPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		PaymentRef    string `json:"payment_ref"`
		RefundRef     string `json:"refund_ref"`
		InternalRef   string `json:"internal_ref"`
		Amount        string `json:"amount"`
		Currency      string `json:"currency"`
		FailureReason string `json:"failure_reason"`
	} `json:"data"`
}

func main() {
	url := flag.String("url", "http://localhost:8080/callbacks/mockpay", "Callback URL")
	secret := flag.String("secret", os.Getenv("MOCKPAY_CALLBACK_SECRET"), "Callback secret")
	eventID := flag.String("event-id", "evt_"+randomHex(8), "Event ID")
	eventType := flag.String("type", "payment.completed", "Event type (payment.completed, payment.failed, refund.completed, refund.failed)")
	paymentRef := flag.String("payment-ref", "pay_"+randomHex(8), "Provider payment ref (for payment events)")
	refundRef := flag.String("refund-ref", "", "Provider refund ref (for refund events)")
	internalRef := flag.String("internal-ref", "", "Our transaction ref (TXN-..., optional)")
	amount := flag.String("amount", "50000", "Amount as a decimal string")
	currency := flag.String("currency", "UGX", "Currency")
	failureReason := flag.String("failure-reason", "", "Failure reason (for *.failed events)")
	dryRun := flag.Bool("dry-run", false, "Only print signature header, don't send")

	flag.Parse()

	if *secret == "" {
		fmt.Fprintf(os.Stderr, "Error: secret not provided and MOCKPAY_CALLBACK_SECRET not set\n")
		os.Exit(1)
	}

	payload := callbackPayload{
		ID:   *eventID,
		Type: *eventType,
	}
	payload.Data.PaymentRef = *paymentRef
	payload.Data.RefundRef = *refundRef
	payload.Data.InternalRef = *internalRef
	payload.Data.Amount = *amount
	payload.Data.Currency = *currency
	payload.Data.FailureReason = *failureReason

	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling payload: %v\n", err)
		os.Exit(1)
	}

	t := time.Now().Unix()
	sig := mockpay.ComputeSignature([]byte(*secret), t, body)
	sigHeader := fmt.Sprintf("t=%d,v1=%s", t, sig)

	fmt.Printf("%s: %s\n", mockpay.SignatureHeader, sigHeader)
	fmt.Printf("Body: %s\n", string(body))

	if *dryRun {
		fmt.Println("\n[DRY RUN] Not sending request")
		return
	}

	fmt.Printf("\nSending to %s...\n", *url)
	req, err := http.NewRequest("POST", *url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating request: %v\n", err)
		os.Exit(1)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(mockpay.SignatureHeader, sigHeader)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %d\n", resp.StatusCode)
	fmt.Printf("Response: %s\n", string(respBody))

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
