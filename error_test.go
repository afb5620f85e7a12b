package uvlink

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestLinkErrorFromWire(t *testing.T) {
	data, err := msgpack.Marshal(map[string]interface{}{
		"request_id": "req-7",
		"error": map[string]interface{}{
			"code":    CodeInvalidParams,
			"message": "File.Path is missing",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	var resp wireResponse
	if err := msgpack.Unmarshal(data, &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("Expected an error in the response")
	}
	if resp.Error.Code != CodeInvalidParams {
		t.Errorf("Expected code %d, got %d", CodeInvalidParams, resp.Error.Code)
	}
	if resp.Error.Message != "File.Path is missing" {
		t.Errorf("Unexpected message %q", resp.Error.Message)
	}
}

func TestLinkErrorString(t *testing.T) {
	e := &LinkError{Command: CmdLoad, Code: CodeApplication, Message: "cannot open file"}
	s := e.Error()
	for _, want := range []string{"Load", "100", "cannot open file"} {
		if !strings.Contains(s, want) {
			t.Errorf("Error() = %q, missing %q", s, want)
		}
	}

	bare := &LinkError{Code: 3, Message: "busy"}
	if !strings.Contains(bare.Error(), "busy") {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestIsLinkError(t *testing.T) {
	err := fmt.Errorf("unwrap job: %w", &LinkError{Code: CodeUnknownCommand})

	if !IsLinkError(err, 0) {
		t.Error("any-code match should succeed through wrapping")
	}
	if !IsLinkError(err, CodeUnknownCommand) {
		t.Error("exact code should match")
	}
	if IsLinkError(err, CodeInvalidParams) {
		t.Error("other code should not match")
	}
	if IsLinkError(errors.New("plain"), 0) {
		t.Error("plain error is not a LinkError")
	}
}
