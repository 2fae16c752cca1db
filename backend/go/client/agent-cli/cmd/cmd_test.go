package cmd

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
)

func TestBuildRequest(t *testing.T) {
	req, err := buildRequest("", "tap", `{"x":100,"y":200}`, nil)
	if err != nil {
		t.Fatalf("buildRequest failed: %v", err)
	}
	if req.Action != "tap" || req.Payload["x"] != float64(100) {
		t.Errorf("Unexpected request: %+v", req)
	}

	req, err = buildRequest("7", "", "", []string{"ls", "/storage/emulated/0"})
	if err != nil || req.Command != "ls /storage/emulated/0" || req.ID != "7" {
		t.Errorf("Unexpected legacy request: %+v, %v", req, err)
	}

	if _, err := buildRequest("", "", "", nil); err == nil {
		t.Errorf("Expected an error without action or command")
	}
	if _, err := buildRequest("", "tap", "[1,2]", nil); err == nil {
		t.Errorf("Expected an error for a non-object payload")
	}
}

func TestSignToken(t *testing.T) {
	signed, err := signToken("s3cret", "dev_01", time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := jwt.Parse(signed, func(*jwt.Token) (interface{}, error) { return []byte("s3cret"), nil })
	if err != nil || !parsed.Valid {
		t.Fatalf("Expected a valid token, got %v", err)
	}
	if claims := parsed.Claims.(jwt.MapClaims); claims["sub"] != "dev_01" {
		t.Errorf("Unexpected subject: %v", claims["sub"])
	}
}
