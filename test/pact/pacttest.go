//go:build pact
// +build pact

package pacttest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// The marketplace API as a provider, verified against the learner portal's expectations.
const (
	ProviderName = "course-marketplace-api"
	ConsumerName = "learner-portal"

	StateCatalogSeeded = "the demo catalog is seeded"
	StateCourseMissing = "no course with id ghost-course"
)

// The marketplace as a consumer of the payment provider.
const (
	GatewayProviderName = "payment-gateway"
	GatewayConsumerName = "course-marketplace-api"

	StateOrderPaid    = "order 1234567890 is paid"
	StateOrderUnknown = "order 404 is unknown"
)

const (
	ExistingCourseID = "b1-grammar"
	MissingCourseID  = "ghost-course"
	LevelCode        = "B1"

	OrderCode     int64 = 1234567890
	UnknownOrder  int64 = 404
	OrderAmount   int64 = 10000
	ChecksumKey         = "pact-checksum"
	ClientID            = "pact-client"
	APIKey              = "pact-api-key"
	ReturnURL           = "https://marketplace.example/return"
	CancelURL           = "https://marketplace.example/cancel"
	ExampleLinkID       = "e3b0c442"
	ExampleCheckout     = "https://pay.example/web/e3b0c442"
	ExampleReference    = "FT-1234567890"
	OrderReferenceLevel = "lvl-B1"
)

// PactDir returns the workspace-level directory for generated pact files.
func PactDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "pacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact dir: %v", err)
	}
	return dir
}

// PactFile returns the canonical pact file path for a consumer/provider pair.
func PactFile(t testing.TB, consumer, provider string) string {
	t.Helper()
	return filepath.Join(PactDir(t), consumer+"-"+provider+".json")
}

// LogDir returns the log output directory for pact-go.
func LogDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "bin", "pact-logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact log dir: %v", err)
	}
	return dir
}

// ExampleCourse is the seeded course the portal renders.
func ExampleCourse() map[string]any {
	return map[string]any{
		"id":            ExistingCourseID,
		"levelCode":     LevelCode,
		"title":         "Intermediate grammar",
		"price":         4000,
		"studentsCount": 0,
	}
}

// projectRoot walks up from this file to the workspace root.
func projectRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine caller for pact paths")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
