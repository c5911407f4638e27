package applog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInitJSONOutputProducesOneJSONLinePerEntry(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSON: true, Output: &buf})

	WithComponent("test").Info().Str("key", "value").Msg("hello")

	line := strings.TrimSpace(buf.String())
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, line)
	}
	if decoded["component"] != "test" {
		t.Errorf("component = %v, want test", decoded["component"])
	}
	if decoded["message"] != "hello" {
		t.Errorf("message = %v, want hello", decoded["message"])
	}
}

func TestDebugLevelSuppressedByDefaultInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSON: true, Output: &buf})

	WithComponent("test").Debug().Msg("should not appear")

	if buf.Len() != 0 {
		t.Errorf("expected no output at debug level, got %q", buf.String())
	}
}

func TestWithConnIDAttachesField(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSON: true, Output: &buf})

	WithConnID("7").Info().Msg("connected")

	var decoded map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["conn_id"] != "7" {
		t.Errorf("conn_id = %v, want 7", decoded["conn_id"])
	}
}
