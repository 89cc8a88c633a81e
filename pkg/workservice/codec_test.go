package workservice

import "testing"

func TestJSONCodecRoundTrips(t *testing.T) {
	c := jsonCodec{}

	in := ComputationDescriptor{ID: "c1", Spec: []byte("spec-bytes")}
	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var out ComputationDescriptor
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if out.ID != in.ID || string(out.Spec) != string(in.Spec) {
		t.Errorf("expected round-trip %+v, got %+v", in, out)
	}
}

func TestJSONCodecName(t *testing.T) {
	if jsonCodec{}.Name() != "json" {
		t.Errorf("expected codec name %q, got %q", "json", jsonCodec{}.Name())
	}
}
