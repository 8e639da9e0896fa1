package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Domain prefixes for content hashing.
// Version suffix enables future algorithm migration.
const (
	DomainState = "stockroom/state/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

type snapshotLine struct {
	Code    string `json:"code"`
	Subtype string `json:"subtype"`
	Qty     int    `json:"qty"`
}

type snapshotOrder struct {
	ID      string         `json:"id"`
	Date    string         `json:"date"`
	Email   string         `json:"email"`
	Product string         `json:"product"`
	Lines   []snapshotLine `json:"lines"`
}

type snapshot struct {
	Items  []Item              `json:"items"`
	Orders []snapshotOrder     `json:"orders"`
	Names  map[string][]string `json:"names"`
}

// MarshalState renders the state as canonical JSON.
// Items are ordered by key and orders by id; line items keep insertion order.
// Two states are equal exactly when their canonical forms are equal.
func MarshalState(s *State) ([]byte, error) {
	snap := snapshot{
		Items:  make([]Item, 0, len(s.Items)),
		Orders: make([]snapshotOrder, 0, len(s.Orders)),
		Names:  make(map[string][]string, len(s.Names)),
	}

	for _, k := range s.SortedKeys() {
		snap.Items = append(snap.Items, s.Items[k])
	}

	ids := make([]string, 0, len(s.Orders))
	for id := range s.Orders {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, strings.Compare)
	for _, id := range ids {
		o := s.Orders[id]
		so := snapshotOrder{
			ID:      o.ID,
			Email:   o.Email,
			Product: o.Product,
			Lines:   make([]snapshotLine, 0, len(o.Lines)),
		}
		if !o.Date.IsZero() {
			so.Date = o.Date.UTC().Format(time.RFC3339Nano)
		}
		for _, l := range o.Lines {
			so.Lines = append(so.Lines, snapshotLine{Code: l.Key.Code, Subtype: l.Key.Subtype, Qty: l.Qty})
		}
		snap.Orders = append(snap.Orders, so)
	}

	for id, names := range s.Names {
		snap.Names[id] = append([]string{}, names...)
	}

	data, err := MarshalCanonical(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return data, nil
}

// StateHash returns the content hash of the state's canonical form.
// Replaying the same log on any client yields the same hash.
func StateHash(s *State) (string, error) {
	data, err := MarshalState(s)
	if err != nil {
		return "", fmt.Errorf("state hash: %w", err)
	}
	return hashWithDomain(DomainState, data), nil
}

// MustStateHash is like StateHash but panics on error.
// Use only in tests or when the state is known to be valid.
func MustStateHash(s *State) string {
	h, err := StateHash(s)
	if err != nil {
		panic(err)
	}
	return h
}
