// Package banks lists the Nigerian banks supported for account debit and the
// per-bank extra fields an account initiation must carry.
package banks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/xpresspay/xpresspay-go/gateway"
	xperrors "github.com/xpresspay/xpresspay-go/pkg/errors"
)

// Bank is a supported bank with its name and code. The bank code is required
// when initiating an account payment.
type Bank struct {
	Name string
	Code string
	// Raw retains the gateway's entry for undocumented fields.
	Raw map[string]any
}

// List fetches the banks supported for account payments, in gateway order.
func List(ctx context.Context, client *gateway.Client, publicKey string) ([]Bank, error) {
	params := url.Values{"publicKey": []string{publicKey}}
	body, err := client.Get(ctx, "/v1/banks?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, xperrors.NewProcessingError(fmt.Sprintf("bank list is not valid JSON: %v", err), 0)
	}

	entries := bankEntries(raw)
	result := make([]Bank, 0, len(entries))
	for _, entry := range entries {
		result = append(result, Bank{
			Name: firstOf(entry, "name", "bankName"),
			Code: firstOf(entry, "code", "bankCode"),
			Raw:  entry,
		})
	}
	return result, nil
}

// bankEntries digs the bank array out of the response, which the gateway has
// shipped both as a bare array and wrapped under data/banks.
func bankEntries(raw any) []map[string]any {
	switch v := raw.(type) {
	case []any:
		return toMaps(v)
	case map[string]any:
		if inner, ok := v["data"]; ok {
			return bankEntries(inner)
		}
		if inner, ok := v["banks"]; ok {
			return bankEntries(inner)
		}
	}
	return nil
}

func toMaps(items []any) []map[string]any {
	result := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			result = append(result, m)
		}
	}
	return result
}

func firstOf(entry map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := entry[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
