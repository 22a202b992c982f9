package service

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jeongyiya/steno-caption/internal/errs"
)

var (
	pinPattern   = regexp.MustCompile(`^\d{4}$`)
	jobIDPattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)
)

func TestCreateJobFormat(t *testing.T) {
	r := NewJobRegistry(0)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		job, err := r.Create()
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if !jobIDPattern.MatchString(job.ID) {
			t.Fatalf("job id %q does not match %s", job.ID, jobIDPattern)
		}
		if !pinPattern.MatchString(job.PIN) {
			t.Fatalf("pin %q does not match %s", job.PIN, pinPattern)
		}
		if job.WriterToken == "" {
			t.Fatal("writer token is empty")
		}
		if !job.Active() {
			t.Fatalf("new job status = %s, want active", job.Status)
		}
		if seen[job.ID] {
			t.Fatalf("duplicate job id %q", job.ID)
		}
		seen[job.ID] = true
	}
	if r.Len() != 200 {
		t.Fatalf("Len = %d, want 200", r.Len())
	}
}

// TestPINDigitsUniform runs a chi-square test over every digit of 1000 PINs.
func TestPINDigitsUniform(t *testing.T) {
	r := NewJobRegistry(0)
	var counts [10]int
	const trials = 1000
	for i := 0; i < trials; i++ {
		pin, err := r.generatePIN()
		if err != nil {
			t.Fatalf("generatePIN: %v", err)
		}
		if !pinPattern.MatchString(pin) {
			t.Fatalf("pin %q does not match %s", pin, pinPattern)
		}
		for _, d := range pin {
			counts[d-'0']++
		}
	}
	expected := float64(trials*pinLength) / 10
	chi := 0.0
	for _, c := range counts {
		diff := float64(c) - expected
		chi += diff * diff / expected
	}
	// 9 degrees of freedom; 33.7 is the p=0.0001 critical value.
	if chi > 33.7 {
		t.Fatalf("chi-square = %.2f over digit counts %v", chi, counts)
	}
}

func TestCreateRetriesOnCollision(t *testing.T) {
	r := NewJobRegistry(0)
	ids := []string{"AAAAAA", "AAAAAA", "AAAAAA", "BBBBBB"}
	r.newID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}
	first, err := r.Create()
	if err != nil || first.ID != "AAAAAA" {
		t.Fatalf("first Create = %+v, %v", first, err)
	}
	second, err := r.Create()
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if second.ID != "BBBBBB" {
		t.Fatalf("second id = %q, want BBBBBB", second.ID)
	}
}

func TestCreateGenerationExhausted(t *testing.T) {
	r := NewJobRegistry(0)
	r.newID = func() (string, error) { return "AAAAAA", nil }
	if _, err := r.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Create(); !errors.Is(err, errs.ErrGenerationExhausted) {
		t.Fatalf("err = %v, want ErrGenerationExhausted", err)
	}
}

func TestEndJob(t *testing.T) {
	r := NewJobRegistry(0)
	job, err := r.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !r.IsActive(job.ID) {
		t.Fatal("new job not active")
	}
	for i := 0; i < 2; i++ {
		if err := r.End(job.ID); err != nil {
			t.Fatalf("End #%d: %v", i+1, err)
		}
	}
	if r.IsActive(job.ID) {
		t.Fatal("ended job still active")
	}
	got, err := r.Get(job.ID)
	if err != nil || got.EndedAt == nil {
		t.Fatalf("Get after end = %+v, %v", got, err)
	}
	if err := r.End("NOPE00"); !errors.Is(err, errs.ErrJobNotFound) {
		t.Fatalf("End unknown: err = %v, want ErrJobNotFound", err)
	}
	if r.IsActive("NOPE00") {
		t.Fatal("unknown job reported active")
	}
}

func TestCheckPIN(t *testing.T) {
	r := NewJobRegistry(0)
	job, err := r.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	r.jobs[job.ID].PIN = "0452"

	tests := []struct {
		name string
		id   string
		pin  string
		want error
	}{
		{"exact", job.ID, "0452", nil},
		{"zero padded", job.ID, "452", nil},
		{"wrong", job.ID, "0453", errs.ErrWrongPIN},
		{"too long", job.ID, "00452", errs.ErrWrongPIN},
		{"unknown job", "NOPE00", "0452", errs.ErrInvalidSession},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.CheckPIN(tt.id, tt.pin); !errors.Is(err, tt.want) {
				t.Fatalf("CheckPIN(%q, %q) = %v, want %v", tt.id, tt.pin, err, tt.want)
			}
		})
	}

	if err := r.End(job.ID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := r.CheckPIN(job.ID, "0452"); !errors.Is(err, errs.ErrInvalidSession) {
		t.Fatalf("ended job: err = %v, want ErrInvalidSession", err)
	}
	pin, err := r.GetPIN(job.ID)
	if err != nil || pin != "0452" {
		t.Fatalf("GetPIN = %q, %v", pin, err)
	}
}

func TestVerifyWriter(t *testing.T) {
	r := NewJobRegistry(0)
	job, err := r.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.VerifyWriter(job.ID, job.WriterToken); err != nil {
		t.Fatalf("VerifyWriter: %v", err)
	}
	if err := r.VerifyWriter(job.ID, ""); !errors.Is(err, errs.ErrWriterTokenMismatch) {
		t.Fatalf("empty token: err = %v", err)
	}
	if err := r.VerifyWriter(job.ID, "other"); !errors.Is(err, errs.ErrWriterTokenMismatch) {
		t.Fatalf("wrong token: err = %v", err)
	}
	if err := r.VerifyWriter("NOPE00", job.WriterToken); !errors.Is(err, errs.ErrJobNotFound) {
		t.Fatalf("unknown job: err = %v", err)
	}
}

func TestSweepEvictsOldJobs(t *testing.T) {
	r := NewJobRegistry(time.Hour)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }
	old, _ := r.Create()
	r.now = func() time.Time { return base.Add(50 * time.Minute) }
	fresh, _ := r.Create()

	if n := r.Sweep(base.Add(30 * time.Minute)); n != 0 {
		t.Fatalf("early sweep evicted %d", n)
	}
	if n := r.Sweep(base.Add(61 * time.Minute)); n != 1 {
		t.Fatalf("sweep evicted %d, want 1", n)
	}
	if _, err := r.Get(old.ID); !errors.Is(err, errs.ErrJobNotFound) {
		t.Fatalf("old job still present: %v", err)
	}
	if !r.IsActive(fresh.ID) {
		t.Fatal("fresh job evicted")
	}

	keep := NewJobRegistry(0)
	keep.Create()
	if n := keep.Sweep(time.Now().Add(1000 * time.Hour)); n != 0 {
		t.Fatalf("ttl 0 evicted %d", n)
	}
}

func TestNormalizePIN(t *testing.T) {
	tests := map[string]string{
		"":      "0000",
		"7":     "0007",
		"452":   "0452",
		"0731":  "0731",
		"12345": "12345",
	}
	for in, want := range tests {
		if got := NormalizePIN(in); got != want {
			t.Errorf("NormalizePIN(%q) = %q, want %q", in, got, want)
		}
	}
}
