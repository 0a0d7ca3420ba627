// timestamp-client runs the x402 handshake against a time-authority server:
// an unpaid POST to collect the payment terms, a simulated payment
// authorization, the paid retry, and a final verify of the issued record.
// The challenge/retry sequence is a caller responsibility; the server keeps
// no state between the two requests.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Paigeblanch/TimeAuthority/internal/protocol"
)

func main() {
	serverURL := flag.String("url", "http://127.0.0.1:8000", "time-authority base url")
	content := flag.String("content", "", "document content to witness")
	docHash := flag.String("hash", "", "precomputed document hash")
	wallet := flag.String("wallet", "agent_wallet_0x123", "payer wallet address")
	flag.Parse()

	if *content == "" && *docHash == "" {
		fmt.Fprintln(os.Stderr, "-content or -hash is required")
		os.Exit(1)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	ctx := context.Background()

	body, err := json.Marshal(protocol.TimestampRequest{Content: *content, Hash: *docHash})
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode request error: %v\n", err)
		os.Exit(1)
	}

	challenge, err := requestChallenge(ctx, client, *serverURL, body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "challenge error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("payment required: %s %s on %s to %s (invoice %s)\n",
		challenge.Amount, challenge.Currency, challenge.Network, challenge.Recipient, challenge.InvoiceID)

	// A real agent would sign and broadcast a transfer here; this client
	// fabricates the authorization.
	assertion := protocol.PaymentAssertion{
		TransactionHash: "0xabcdef123456",
		Amount:          challenge.Amount,
		Currency:        challenge.Currency,
		Network:         challenge.Network,
		From:            *wallet,
		To:              challenge.Recipient,
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
	}

	proof, err := retryWithPayment(ctx, client, *serverURL, body, assertion)
	if err != nil {
		fmt.Fprintf(os.Stderr, "timestamp error: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(proof); err != nil {
		fmt.Fprintf(os.Stderr, "encode proof error: %v\n", err)
		os.Exit(1)
	}

	verified, err := verifyTransaction(ctx, client, *serverURL, proof.TransactionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("verified: %v (transaction %s)\n", verified.Verified, verified.Transaction.TransactionID)
}

func requestChallenge(ctx context.Context, client *http.Client, baseURL string, body []byte) (protocol.PaymentChallenge, error) {
	resp, err := post(ctx, client, baseURL+"/timestamp", body, "")
	if err != nil {
		return protocol.PaymentChallenge{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPaymentRequired {
		return protocol.PaymentChallenge{}, fmt.Errorf("expected 402, got %d", resp.StatusCode)
	}
	var parsed protocol.PaymentRequiredResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return protocol.PaymentChallenge{}, fmt.Errorf("decode challenge: %w", err)
	}
	return parsed.Payment, nil
}

func retryWithPayment(ctx context.Context, client *http.Client, baseURL string, body []byte, assertion protocol.PaymentAssertion) (protocol.TimestampResponse, error) {
	header, err := json.Marshal(assertion)
	if err != nil {
		return protocol.TimestampResponse{}, fmt.Errorf("encode payment header: %w", err)
	}
	resp, err := post(ctx, client, baseURL+"/timestamp", body, string(header))
	if err != nil {
		return protocol.TimestampResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return protocol.TimestampResponse{}, fmt.Errorf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	var proof protocol.TimestampResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&proof); err != nil {
		return protocol.TimestampResponse{}, fmt.Errorf("decode proof: %w", err)
	}
	return proof, nil
}

func verifyTransaction(ctx context.Context, client *http.Client, baseURL, transactionID string) (protocol.VerifyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/verify/"+transactionID, nil)
	if err != nil {
		return protocol.VerifyResponse{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return protocol.VerifyResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return protocol.VerifyResponse{}, fmt.Errorf("expected 200, got %d", resp.StatusCode)
	}
	var parsed protocol.VerifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return protocol.VerifyResponse{}, fmt.Errorf("decode verify response: %w", err)
	}
	return parsed, nil
}

func post(ctx context.Context, client *http.Client, url string, body []byte, paymentHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if paymentHeader != "" {
		req.Header.Set("X-Payment", paymentHeader)
	}
	return client.Do(req)
}
