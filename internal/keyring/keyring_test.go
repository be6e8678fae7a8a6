package keyring

import (
	"bytes"
	"errors"
	"testing"

	gokeyring "github.com/zalando/go-keyring"
)

func TestToken(t *testing.T) {
	gokeyring.MockInit()

	if _, err := Token(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Token() on empty keyring error = %v, want ErrNotFound", err)
	}
	if err := SetToken("abc.def.ghi"); err != nil {
		t.Fatalf("SetToken() failed: %v", err)
	}
	got, err := Token()
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if got != "abc.def.ghi" {
		t.Errorf("Token() = %q, want %q", got, "abc.def.ghi")
	}

	if err := ClearToken(); err != nil {
		t.Fatalf("ClearToken() failed: %v", err)
	}
	if err := ClearToken(); err != nil {
		t.Errorf("second ClearToken() failed: %v", err)
	}
	if _, err := Token(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Token() after clear error = %v, want ErrNotFound", err)
	}
}

func TestSetEmpty(t *testing.T) {
	gokeyring.MockInit()

	if err := SetToken(""); err == nil {
		t.Error("SetToken(\"\") should return an error")
	}
	if err := SetDatabasePassword(""); err == nil {
		t.Error("SetDatabasePassword(\"\") should return an error")
	}
}

func TestSigningKeyIsStable(t *testing.T) {
	gokeyring.MockInit()

	first, err := SigningKey()
	if err != nil {
		t.Fatalf("SigningKey() failed: %v", err)
	}
	if len(first) != 32 {
		t.Errorf("len(key) = %d, want 32", len(first))
	}
	second, err := SigningKey()
	if err != nil {
		t.Fatalf("second SigningKey() failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("SigningKey() generated a new key on second call")
	}
}

func TestDatabasePassword(t *testing.T) {
	gokeyring.MockInit()

	if err := SetDatabasePassword("s3cret"); err != nil {
		t.Fatalf("SetDatabasePassword() failed: %v", err)
	}
	pw, err := DatabasePassword()
	if err != nil || pw != "s3cret" {
		t.Errorf("DatabasePassword() = %q, %v", pw, err)
	}
	if err := DeleteDatabasePassword(); err != nil {
		t.Fatalf("DeleteDatabasePassword() failed: %v", err)
	}
	if err := DeleteDatabasePassword(); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestIsAvailable(t *testing.T) {
	gokeyring.MockInit()
	if !IsAvailable() {
		t.Error("IsAvailable() = false with mock keyring")
	}
}
