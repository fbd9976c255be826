package validator

import "testing"

func TestCheck(t *testing.T) {
	v := New()
	ok := v.Check("SELECT a FROM t WHERE b = 1")
	if !ok.Valid || ok.Err != nil {
		t.Fatalf("expected valid statement: %+v", ok)
	}
	if ok.Digest == "" {
		t.Fatalf("expected digest")
	}
	same := v.Check("select a from t where b = 42")
	if same.Digest != ok.Digest {
		t.Fatalf("literals should not change the digest: %s vs %s", same.Digest, ok.Digest)
	}
	bad := v.Check("SELEC a FRM t")
	if bad.Valid || bad.Err == nil {
		t.Fatalf("expected syntax error: %+v", bad)
	}
	if empty := v.Check("   "); empty.Valid || empty.Digest != "" {
		t.Fatalf("empty statement should be invalid without digest: %+v", empty)
	}
}
