package callback

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Envelope carries one inbound transition request on the wire. It exists only
// to be authenticated and is discarded after verification.
type Envelope struct {
	JobID     string
	Timestamp int64
	Payload   []byte
	Signature string
}

// StringToSign builds the canonical signing input for a callback:
// job_id|unix_timestamp|sha256(payload).
func StringToSign(jobID string, timestamp int64, payload []byte) string {
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%s|%d|%s", jobID, timestamp, hex.EncodeToString(sum[:]))
}

// Sign computes the hex-encoded HMAC-SHA256 signature for a callback.
func Sign(secret, jobID string, timestamp int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(StringToSign(jobID, timestamp, payload)))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks the envelope signature in constant time.
func VerifySignature(secret string, env Envelope) bool {
	expected := Sign(secret, env.JobID, env.Timestamp, env.Payload)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(env.Signature)) == 1
}
