package status

import "testing"

func TestNormalizeKnownVariants(t *testing.T) {
	cases := map[string]Status{
		"Pendiente":   Pending,
		"pendiente":   Pending,
		"Sospechosa":  Suspicious,
		" sospechosa": Suspicious,
		"Confirmada":  Confirmed,
		"confirmed":   Confirmed,
		"CONFIRMED":   Confirmed,
		"Rechazada":   Rejected,
		"rejected":    Rejected,
		" Rechazada ": Rejected,
	}
	for raw, want := range cases {
		if got := Normalize(raw); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNormalizeUnknownDefaultsToPending(t *testing.T) {
	for _, raw := range []string{"", "   ", "garbage", "Confirmadaa", "rej"} {
		if got := Normalize(raw); got != Pending {
			t.Fatalf("Normalize(%q) = %q, want pending", raw, got)
		}
	}
}

func TestStorageValueRoundTrip(t *testing.T) {
	for _, s := range []Status{Pending, Suspicious, Confirmed, Rejected} {
		if got := Normalize(StorageValue(s)); got != s {
			t.Fatalf("Normalize(StorageValue(%q)) = %q", s, got)
		}
		if len(StorageValues(s)) == 0 {
			t.Fatalf("no storage values for %q", s)
		}
	}
}

func TestVideoProcessing(t *testing.T) {
	if !VideoProcessing("Sospechosa", "") {
		t.Fatalf("suspicious without video should be processing")
	}
	if VideoProcessing("Sospechosa", "https://cdn.example.com/v.mp4") {
		t.Fatalf("suspicious with video should not be processing")
	}
	if VideoProcessing("Pendiente", "") {
		t.Fatalf("pending is never processing")
	}
}
