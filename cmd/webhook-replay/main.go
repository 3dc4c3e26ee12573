/**
 * @description
 * Developer tool that replays a Shopify order webhook against a running ledger
 * service. The JSON file is sent byte-for-byte and signed with the shared
 * secret, the same way Shopify signs deliveries. Replaying the same file twice
 * exercises the duplicate path.
 *
 * Usage:
 *   go run ./cmd/webhook-replay order.json --url http://localhost:8080/webhooks/shopify
 *
 * @dependencies
 * - Environment variables: SHOPIFY_WEBHOOK_SECRET (or WEBHOOK_SECRET)
 */
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nanisveeha-crypto/svntex-app/internal/api"
)

func main() {
	if err := replayCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook-replay [order.json]",
		Short: "Sign an order payload and POST it to the ledger webhook endpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}

	cmd.Flags().StringP("url", "u", "http://localhost:8080/webhooks/shopify", "Webhook endpoint")
	cmd.Flags().StringP("topic", "t", "orders/paid", "Value for the X-Shopify-Topic header")
	cmd.Flags().String("shop", "svntex.myshopify.com", "Value for the X-Shopify-Shop-Domain header")
	cmd.Flags().Duration("timeout", 15*time.Second, "Request timeout")

	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	secret := os.Getenv("SHOPIFY_WEBHOOK_SECRET")
	if secret == "" {
		secret = os.Getenv("WEBHOOK_SECRET")
	}
	if secret == "" {
		return errors.New("SHOPIFY_WEBHOOK_SECRET environment variable is required")
	}

	target, _ := cmd.Flags().GetString("url")
	topic, _ := cmd.Flags().GetString("topic")
	shop, _ := cmd.Flags().GetString("shop")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	body, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	req, err := newSignedRequest(ctx, target, topic, shop, secret, body)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Webhook ID: %s\n", req.Header.Get(api.HeaderWebhookID))
	fmt.Fprintf(out, "Status:     %s\n", resp.Status)
	fmt.Fprintf(out, "Body:       %s\n", bytes.TrimSpace(respBody))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook rejected with %s", resp.Status)
	}
	return nil
}

// newSignedRequest builds a POST carrying body exactly as read and the headers Shopify sends.
// Each call gets a fresh webhook id, like a Shopify retry.
func newSignedRequest(ctx context.Context, target, topic, shop, secret string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.HeaderTopic, topic)
	req.Header.Set(api.HeaderShopDomain, shop)
	req.Header.Set(api.HeaderWebhookID, uuid.NewString())
	req.Header.Set(api.HeaderHmacSHA256, api.SignBody(secret, body))
	return req, nil
}
