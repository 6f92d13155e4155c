package security

import "testing"

const testPAN = "4212345678901231"

func validTestPAN(t *testing.T) string {
	t.Helper()
	// fix up the check digit so the constant stays readable
	for d := byte('0'); d <= '9'; d++ {
		pan := testPAN[:15] + string(d)
		if err := validate(pan); err == nil {
			return pan
		}
	}
	t.Fatal("no valid check digit found")
	return ""
}

func validate(pan string) error {
	_, err := StaticCVV(pan, "3010", []byte("k"))
	return err
}

func TestStaticCVV_Deterministic(t *testing.T) {
	pan := validTestPAN(t)
	key := []byte("test-key")
	a, err := StaticCVV(pan, "3010", key)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	b, err := StaticCVV(pan, "3010", key)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if a != b {
		t.Fatalf("same inputs produced %s and %s", a, b)
	}
	if len(a) != 3 {
		t.Fatalf("cvv %q is not 3 digits", a)
	}
}

func TestStaticCVV_VariesWithInputs(t *testing.T) {
	pan := validTestPAN(t)
	key := []byte("test-key")
	base, _ := StaticCVV(pan, "3010", key)
	otherExpiry, _ := StaticCVV(pan, "3110", key)
	otherKey, _ := StaticCVV(pan, "3010", []byte("other"))
	if base == otherExpiry && base == otherKey {
		t.Fatal("cvv did not vary with expiry or key")
	}
}

func TestStaticCVV_RejectsBadInputs(t *testing.T) {
	if _, err := StaticCVV("not-a-pan", "3010", []byte("k")); err == nil {
		t.Fatal("expected error for invalid pan")
	}
	if _, err := StaticCVV(validTestPAN(t), "3013", []byte("k")); err == nil {
		t.Fatal("expected error for invalid expiry month")
	}
}
