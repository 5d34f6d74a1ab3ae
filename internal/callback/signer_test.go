package callback

import (
	"strings"
	"testing"
)

func TestSignIsDeterministic(t *testing.T) {
	payload := []byte(`{"preview_url":"https://cdn/x.png"}`)
	a := Sign("secret", "job-1", 1700000000, payload)
	b := Sign("secret", "job-1", 1700000000, payload)
	if a != b {
		t.Fatalf("signatures differ: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestVerifySignatureRejectsAlteredPayload(t *testing.T) {
	payload := []byte(`{"final_urls":["https://x/out.mp4"],"actual_cost":200}`)
	env := Envelope{
		JobID:     "job-1",
		Timestamp: 1700000000,
		Payload:   payload,
		Signature: Sign("secret", "job-1", 1700000000, payload),
	}
	if !VerifySignature("secret", env) {
		t.Fatal("valid envelope rejected")
	}

	tampered := env
	tampered.Payload = []byte(`{"final_urls":["https://evil/out.mp4"],"actual_cost":200}`)
	if VerifySignature("secret", tampered) {
		t.Fatal("altered payload accepted with original signature")
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	env := Envelope{
		JobID:     "job-1",
		Timestamp: 1700000000,
		Payload:   payload,
		Signature: Sign("other-secret", "job-1", 1700000000, payload),
	}
	if VerifySignature("secret", env) {
		t.Fatal("signature from wrong secret accepted")
	}
}

func TestStringToSignBindsAllParts(t *testing.T) {
	base := StringToSign("job-1", 1700000000, []byte("payload"))
	if StringToSign("job-2", 1700000000, []byte("payload")) == base {
		t.Fatal("job id not bound into signing string")
	}
	if StringToSign("job-1", 1700000001, []byte("payload")) == base {
		t.Fatal("timestamp not bound into signing string")
	}
	if StringToSign("job-1", 1700000000, []byte("other")) == base {
		t.Fatal("payload not bound into signing string")
	}
	if !strings.HasPrefix(base, "job-1|1700000000|") {
		t.Fatalf("unexpected canonical layout: %q", base)
	}
}
