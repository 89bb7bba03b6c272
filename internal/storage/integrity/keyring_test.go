package integrity

import "testing"

func TestNewKeyringValidation(t *testing.T) {
	if _, err := NewKeyring(nil, "v1"); err == nil {
		t.Fatal("expected error for missing keys")
	}

	if _, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, ""); err == nil {
		t.Fatal("expected error for missing active key id")
	}

	if _, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v2"); err == nil {
		t.Fatal("expected error for unknown active key id")
	}
}

func TestKeyringSignAndVerify(t *testing.T) {
	ring, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	sig, keyID, err := ring.SignChainHash("inst-1", "chainhash")
	if err != nil {
		t.Fatalf("sign chain hash: %v", err)
	}
	if keyID != "v1" {
		t.Fatalf("expected key id v1, got %s", keyID)
	}

	if err := ring.VerifyChainHash("inst-1", "chainhash", sig, keyID); err != nil {
		t.Fatalf("verify chain hash: %v", err)
	}
}

func TestKeyringDerivesPerInstance(t *testing.T) {
	ring, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	sigA, _, err := ring.SignChainHash("inst-a", "chainhash")
	if err != nil {
		t.Fatalf("sign chain hash: %v", err)
	}
	sigB, _, err := ring.SignChainHash("inst-b", "chainhash")
	if err != nil {
		t.Fatalf("sign chain hash: %v", err)
	}
	if sigA == sigB {
		t.Fatal("expected distinct signatures per instance")
	}
	if err := ring.VerifyChainHash("inst-b", "chainhash", sigA, "v1"); err == nil {
		t.Fatal("expected cross-instance signature to fail verification")
	}
}

func TestKeyringVerifyFailures(t *testing.T) {
	ring, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	sig, _, err := ring.SignChainHash("inst-1", "chainhash")
	if err != nil {
		t.Fatalf("sign chain hash: %v", err)
	}

	if err := ring.VerifyChainHash("inst-1", "chainhash", sig, ""); err == nil {
		t.Fatal("expected error for missing key id")
	}
	if err := ring.VerifyChainHash("inst-1", "chainhash", sig, "unknown"); err == nil {
		t.Fatal("expected error for unknown key id")
	}
	if err := ring.VerifyChainHash("inst-1", "chainhash", "bad", "v1"); err == nil {
		t.Fatal("expected error for signature mismatch")
	}
}

func TestKeyringActiveKeyID(t *testing.T) {
	var ring *Keyring
	if ring.ActiveKeyID() != "" {
		t.Fatal("expected empty active key id for nil keyring")
	}

	ring, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	if ring.ActiveKeyID() != "v1" {
		t.Fatalf("expected active key id v1, got %s", ring.ActiveKeyID())
	}
}

func TestKeyringSignRequiresKeyring(t *testing.T) {
	var ring *Keyring
	if _, _, err := ring.SignChainHash("inst-1", "hash"); err == nil {
		t.Fatal("expected error for nil keyring")
	}
}

func TestKeyringVerifyRequiresInstanceID(t *testing.T) {
	ring, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	sig, keyID, err := ring.SignChainHash("inst-1", "hash")
	if err != nil {
		t.Fatalf("sign chain hash: %v", err)
	}

	if err := ring.VerifyChainHash("", "hash", sig, keyID); err == nil {
		t.Fatal("expected error for missing instance id")
	}
}
