package progress

import "testing"

func TestReporterReportAndClose(t *testing.T) {
	r := New()
	r.Report(Update{Language: "go", Processed: 1, Total: 10})
	r.Report(Update{Language: "go", Processed: 2, Total: 10})
	r.Close()
}
