package models

import "encoding/json"

// InvoiceRequest is the single downstream call made for every accepted HTTP
// request. AmountMsat is already expressed in the node's smallest unit.
type InvoiceRequest struct {
	AmountMsat  uint64
	Label       string
	Description string
}

// Invoice mirrors the result of the node's invoice RPC. An Invoice decoded
// from node output marshals back to exactly those bytes, so fields this
// struct does not name reach the caller unchanged.
type Invoice struct {
	Bolt11               string `json:"bolt11"`
	PaymentHash          string `json:"payment_hash"`
	PaymentSecret        string `json:"payment_secret,omitempty"`
	ExpiresAt            int64  `json:"expires_at"`
	CreatedIndex         uint64 `json:"created_index,omitempty"`
	WarningCapacity      string `json:"warning_capacity,omitempty"`
	WarningOffline       string `json:"warning_offline,omitempty"`
	WarningDeadends      string `json:"warning_deadends,omitempty"`
	WarningPrivateUnused string `json:"warning_private_unused,omitempty"`
	WarningMPP           string `json:"warning_mpp,omitempty"`

	raw json.RawMessage
}

type invoiceFields Invoice

// UnmarshalJSON decodes the known fields and keeps the original document.
func (inv *Invoice) UnmarshalJSON(data []byte) error {
	var fields invoiceFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*inv = Invoice(fields)
	inv.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the node's original document when there is one.
func (inv Invoice) MarshalJSON() ([]byte, error) {
	if len(inv.raw) > 0 {
		return inv.raw, nil
	}
	return json.Marshal(invoiceFields(inv))
}

// Raw returns the node's original document, or nil for an Invoice built in
// code.
func (inv *Invoice) Raw() json.RawMessage {
	return inv.raw
}
