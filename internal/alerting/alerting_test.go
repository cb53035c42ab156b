package alerting

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogNotifierWritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	n.Notify(context.Background(), Alert{
		Title:    "slow rule execution",
		Level:    LevelWarning,
		TenantID: "acme",
		Tags:     map[string]string{"rule_id": "7"},
	})

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "slow rule execution")
	assert.Contains(t, out, "tenant_id=acme")
	assert.Contains(t, out, "rule_id=7")
}

func TestMultiFansOut(t *testing.T) {
	var got []string
	rec := NotifierFunc(func(ctx context.Context, a Alert) { got = append(got, a.Title) })

	Multi{rec, nil, rec}.Notify(context.Background(), Alert{Title: "x"})
	assert.Equal(t, []string{"x", "x"}, got)
}
