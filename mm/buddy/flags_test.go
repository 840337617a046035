package buddy

import "testing"

func TestPurposeTag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"net", "net"},
		{"pagetbl", "pagetbl"},
		{"exactly8", "exactly8"},
		{"truncated past eight", "truncate"},
	}
	for _, tt := range tests {
		if got := Tag(tt.in).String(); got != tt.want {
			t.Errorf("Tag(%q).String() = %q, want %q", tt.in, got, tt.want)
		}
	}
	if !Tag("").IsZero() {
		t.Error("empty tag should be zero")
	}
	if Tag("x").IsZero() {
		t.Error("nonempty tag should not be zero")
	}
}

func TestZoneTypeString(t *testing.T) {
	tests := []struct {
		typ  ZoneType
		want string
	}{
		{ZoneNormal, "normal"},
		{ZoneDma, "dma"},
		{ZoneDma64, "dma64"},
		{ZoneHighMem, "highmem"},
		{ZonePmem, "pmem"},
		{ZoneCxl, "cxl"},
		{ZoneType(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("ZoneType(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}
