package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/slack-go/slack"
)

func sign(secret, ts, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + ts + ":" + body))
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func headersFor(ts, sig string) http.Header {
	h := http.Header{}
	h.Set("X-Slack-Request-Timestamp", ts)
	h.Set("X-Slack-Signature", sig)
	return h
}

func verify(t *testing.T, secret string, headers http.Header, body string) error {
	t.Helper()
	sv, err := slack.NewSecretsVerifier(headers, secret)
	if err != nil {
		return err
	}
	if _, err := sv.Write([]byte(body)); err != nil {
		return err
	}
	return sv.Ensure()
}

func TestSlackSignatureValid(t *testing.T) {
	secret := "8f742231b10e8888abcd99yyyzzz85a5"
	body := `{"token":"Jhj5dZrVaK7ZwHHjRyZWjbDl"}`
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := sign(secret, ts, body)

	if err := verify(t, secret, headersFor(ts, sig), body); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}
}

func TestSlackSignatureStaleTimestampRejected(t *testing.T) {
	secret := "8f742231b10e8888abcd99yyyzzz85a5"
	body := `{"token":"Jhj5dZrVaK7ZwHHjRyZWjbDl"}`
	ts := strconv.FormatInt(time.Now().Add(-600*time.Second).Unix(), 10)
	sig := sign(secret, ts, body)

	if err := verify(t, secret, headersFor(ts, sig), body); err == nil {
		t.Fatal("expected stale timestamp to be rejected")
	}
}

func TestSlackSignatureTamperedBodyRejected(t *testing.T) {
	secret := "8f742231b10e8888abcd99yyyzzz85a5"
	body := `{"token":"Jhj5dZrVaK7ZwHHjRyZWjbDl"}`
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := sign(secret, ts, body)

	tampered := body + "x"
	if err := verify(t, secret, headersFor(ts, sig), tampered); err == nil {
		t.Fatal("expected tampered body to be rejected")
	}
}

func TestSlackSignatureWrongSecretRejected(t *testing.T) {
	body := `{"token":"Jhj5dZrVaK7ZwHHjRyZWjbDl"}`
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := sign("wrong-secret", ts, body)

	if err := verify(t, "8f742231b10e8888abcd99yyyzzz85a5", headersFor(ts, sig), body); err == nil {
		t.Fatal("expected mismatched secret to be rejected")
	}
}

func TestSlackMentionStripping(t *testing.T) {
	botID := "U123BOT"
	text := fmt.Sprintf("<@%s> hello there", botID)
	if !mentionsBot(text, botID) {
		t.Fatal("expected mention to be detected")
	}
	if got := stripMention(text, botID); got != "hello there" {
		t.Fatalf("got %q", got)
	}
}
