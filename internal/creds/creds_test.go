package creds

import (
	"bytes"
	"testing"
	"time"
)

func TestAEADRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	e, err := newAEAD(key)
	if err != nil {
		t.Fatal(err)
	}

	ct, err := e.seal("ResyAPI-token-value")
	if err != nil {
		t.Fatalf("seal() error = %v", err)
	}
	if ct == "ResyAPI-token-value" {
		t.Fatal("seal() returned plaintext")
	}
	pt, err := e.open(ct)
	if err != nil {
		t.Fatalf("open() error = %v", err)
	}
	if pt != "ResyAPI-token-value" {
		t.Errorf("open(seal(x)) = %q, want original", pt)
	}
}

func TestAEADRejectsTampering(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	e, err := newAEAD(key)
	if err != nil {
		t.Fatal(err)
	}
	ct, err := e.seal("secret")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.open("A" + ct[1:]); err == nil {
		t.Error("open() accepted a tampered ciphertext")
	}
	if _, err := e.open("too-short"); err == nil {
		t.Error("open() accepted garbage")
	}
}

func TestAEADRejectsBadKeySize(t *testing.T) {
	if _, err := newAEAD([]byte("short")); err == nil {
		t.Error("newAEAD() accepted a 5-byte key")
	}
}

func TestResolveZone(t *testing.T) {
	east, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	pacific, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		want *time.Location
	}{
		{"east", east},
		{"west", pacific},
		{"", east},     // unset falls back to default
		{"mars", east}, // unknown falls back to default
	}
	for _, tc := range cases {
		if got := ResolveZone(tc.name); got.String() != tc.want.String() {
			t.Errorf("ResolveZone(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
