package security

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidSimpleID(t *testing.T) {
	if err := ValidateSessionID("agent:main:telegram:direct:100"); err != nil {
		t.Fatal(err)
	}
}

func TestValidIDWithSpaceAndTab(t *testing.T) {
	if err := ValidateSessionID("foo bar\tbaz"); err != nil {
		t.Fatal(err)
	}
}

func TestRejectEmpty(t *testing.T) {
	if err := ValidateSessionID(""); err == nil {
		t.Fatal("expected error")
	}
}

func TestRejectTooLong(t *testing.T) {
	if err := ValidateSessionID(strings.Repeat("a", 257)); err == nil {
		t.Fatal("expected error")
	}
}

func TestAcceptMaxLength(t *testing.T) {
	if err := ValidateSessionID(strings.Repeat("b", 256)); err != nil {
		t.Fatalf("256 bytes should be accepted: %v", err)
	}
}

func TestRejectPathTraversal(t *testing.T) {
	err := ValidateSessionID("foo/../bar")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRejectForwardSlash(t *testing.T) {
	if err := ValidateSessionID("foo/bar"); err == nil {
		t.Fatal("expected error")
	} else if !strings.Contains(err.Error(), "directory separator") {
		t.Fatalf("expected directory separator message, got %v", err)
	}
}

func TestRejectBackslash(t *testing.T) {
	if err := ValidateSessionID(`foo\bar`); err == nil {
		t.Fatal("expected error")
	}
}

func TestRejectNullByte(t *testing.T) {
	if err := ValidateSessionID("foo\x00bar"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRejectControlChar(t *testing.T) {
	if err := ValidateSessionID("foo\x01bar"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSanitizePreservesNormalText(t *testing.T) {
	if got := SanitizeContent("hello world"); got != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizePreservesNewlinesTabs(t *testing.T) {
	in := "line1\nline2\tend\r\n"
	if got := SanitizeContent(in); got != in {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizeStripsNull(t *testing.T) {
	if got := SanitizeContent("a\x00b"); got != "ab" {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizeStripsControlChars(t *testing.T) {
	if got := SanitizeContent("a\x01\x02\x1Fb"); got != "ab" {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizeStripsDel(t *testing.T) {
	if got := SanitizeContent("a\x7Fb"); got != "ab" {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizePreservesEmoji(t *testing.T) {
	in := "😀🌍"
	if got := SanitizeContent(in); got != in {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizePreservesCJK(t *testing.T) {
	in := "你好世界"
	if got := SanitizeContent(in); got != in {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizePreservesRTL(t *testing.T) {
	in := "مرحبا"
	if got := SanitizeContent(in); got != in {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	in := "a\x01b😀\tc"
	once := SanitizeContent(in)
	twice := SanitizeContent(once)
	if once != twice {
		t.Fatalf("not idempotent: %q vs %q", once, twice)
	}
}

func TestNoTruncationWhenFits(t *testing.T) {
	v := TruncateResult("short", 1000)
	if v != "short" {
		t.Fatalf("expected unchanged, got %v", v)
	}
}

func TestTruncateLongString(t *testing.T) {
	v := TruncateResult(strings.Repeat("x", 500), 100)
	s, ok := v.(string)
	if !ok {
		t.Fatalf("expected string, got %T", v)
	}
	if !strings.Contains(s, "truncated") {
		t.Fatalf("expected 'truncated' marker, got %q", s)
	}
	out, _ := json.Marshal(s)
	if len(out) > 100 {
		t.Fatalf("serialized length %d exceeds budget", len(out))
	}
}

func TestTruncateLargeArray(t *testing.T) {
	arr := make([]any, 100)
	for i := range arr {
		arr[i] = i
	}
	v := TruncateResult(arr, 100)
	result, ok := v.([]any)
	if !ok {
		t.Fatalf("expected array, got %T", v)
	}
	out, _ := json.Marshal(result)
	if len(out) > 100 {
		t.Fatalf("serialized length %d exceeds budget", len(out))
	}
	last, ok := result[len(result)-1].(map[string]any)
	if !ok || last["_truncated"] != true {
		t.Fatalf("expected sentinel trailer, got %v", result[len(result)-1])
	}
}

func TestTruncateObject(t *testing.T) {
	obj := make(map[string]any, 50)
	for i := 0; i < 50; i++ {
		obj[strings.Repeat("k", i+1)] = i
	}
	v := TruncateResult(obj, 100)
	result, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected map wrapper, got %T", v)
	}
	if _, ok := result["_truncated_json"]; !ok {
		t.Fatal("expected _truncated_json key")
	}
}

func TestCommandPolicySafeDefaults(t *testing.T) {
	p := SafeDefaults()
	if p.Mode != Allowlist {
		t.Fatal("expected allowlist mode")
	}
	if len(p.DangerousPatterns) != 11 {
		t.Fatalf("expected 11 dangerous patterns, got %d", len(p.DangerousPatterns))
	}
}

func TestAllowlistAcceptsSafeCommands(t *testing.T) {
	p := SafeDefaults()
	for _, cmd := range []string{"echo hello", "ls -la", "cat file.txt", "pwd"} {
		if err := p.Validate(cmd); err != nil {
			t.Fatalf("%q should be accepted: %v", cmd, err)
		}
	}
}

func TestAllowlistRejectsUnlistedCommands(t *testing.T) {
	p := SafeDefaults()
	for _, cmd := range []string{"curl http://evil.com", "nmap -sS 10.0.0.0/24", "nc -l 4444", `bash -c "evil"`} {
		err := p.Validate(cmd)
		if err == nil {
			t.Fatalf("%q should be rejected", cmd)
		}
	}
}

func TestDenylistModeAllowsSafeCurl(t *testing.T) {
	p := SafeDefaults()
	p.Mode = Denylist
	if err := p.Validate("curl http://safe.com"); err != nil {
		t.Fatalf("expected curl without shell pipe to be allowed, got %v", err)
	}
}

func TestDenylistModeBlocksDangerous(t *testing.T) {
	p := SafeDefaults()
	p.Mode = Denylist
	if err := p.Validate("rm -rf /"); err == nil {
		t.Fatal("expected dangerous pattern rejection")
	}
	if err := p.Validate("sudo something"); err == nil {
		t.Fatal("expected dangerous pattern rejection")
	}
}

func TestDangerousPatternsCheckedInAllowlistModeToo(t *testing.T) {
	p := SafeDefaults()
	err := p.Validate("echo; rm -rf /")
	pe, ok := err.(*PolicyError)
	if !ok || pe.Kind != Dangerous {
		t.Fatalf("expected dangerous pattern rejection, got %v", err)
	}
}

func TestCaseInsensitiveDangerousMatch(t *testing.T) {
	p := SafeDefaults()
	for _, cmd := range []string{"SUDO something", "SuDo apt install evil"} {
		if err := p.Validate(cmd); err == nil {
			t.Fatalf("%q should be rejected", cmd)
		}
	}
}

func TestExtractFirstToken(t *testing.T) {
	cases := map[string]string{
		"echo foo":          "echo",
		"/usr/bin/ls -la":   "ls",
		"  cat file":        "cat",
		"":                  "",
		"   ":               "",
	}
	for in, want := range cases {
		if got := ExtractFirstToken(in); got != want {
			t.Fatalf("ExtractFirstToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAllowlistPathBasename(t *testing.T) {
	p := SafeDefaults()
	if err := p.Validate("/usr/bin/curl http://evil.com"); err == nil {
		t.Fatal("expected rejection: curl basename not allowlisted")
	}
	if err := p.Validate("/usr/bin/ls -la"); err != nil {
		t.Fatalf("expected acceptance: ls basename allowlisted, got %v", err)
	}
}

func TestWhitespaceNormalizationStillBlocks(t *testing.T) {
	p := SafeDefaults()
	if err := p.Validate("sudo\tsomething"); err == nil {
		t.Fatal("expected tab-separated sudo command to be blocked")
	}
}

func TestUrlPolicyDisabledAllowsEverything(t *testing.T) {
	p := &UrlPolicy{Enabled: false}
	if err := p.Validate("http://169.254.169.254/latest/meta-data"); err != nil {
		t.Fatalf("disabled policy should allow everything, got %v", err)
	}
}

func TestUrlPolicyRejectsBadScheme(t *testing.T) {
	p := &UrlPolicy{Enabled: true, AllowPrivate: true}
	if err := p.Validate("ftp://example.com/file"); err == nil {
		t.Fatal("expected scheme rejection")
	}
}

func TestUrlPolicyRejectsLoopback(t *testing.T) {
	p := &UrlPolicy{Enabled: true}
	if err := p.Validate("http://127.0.0.1/admin"); err == nil {
		t.Fatal("expected loopback rejection")
	}
}

func TestUrlPolicyAllowedDomains(t *testing.T) {
	p := &UrlPolicy{Enabled: true, AllowPrivate: true, AllowedDomains: []string{"example.com"}}
	if err := p.Validate("https://api.example.com/v1"); err != nil {
		t.Fatalf("subdomain of allowed domain should pass: %v", err)
	}
	if err := p.Validate("https://other.com/v1"); err == nil {
		t.Fatal("expected rejection for domain not in allow list")
	}
}

func TestUrlPolicyBlockedDomains(t *testing.T) {
	p := &UrlPolicy{Enabled: true, AllowPrivate: true, BlockedDomains: []string{"evil.com"}}
	if err := p.Validate("https://evil.com/x"); err == nil {
		t.Fatal("expected rejection for blocked domain")
	}
	if err := p.Validate("https://fine.com/x"); err != nil {
		t.Fatalf("non-blocked domain should pass: %v", err)
	}
}
