package pool

import "testing"

func TestBuildPath(t *testing.T) {
	got := BuildPath(func(b *PathBuilder) {
		b.AppendWithDot("Patient")
		b.AppendWithDot("name")
		b.AppendIndex(0)
		b.AppendWithDot("given")
	})
	if got != "Patient.name[0].given" {
		t.Errorf("BuildPath = %q, want %q", got, "Patient.name[0].given")
	}
}

func TestPathBuilderReuse(t *testing.T) {
	pb := AcquirePathBuilder()
	pb.WriteString("Observation")
	if pb.Len() != len("Observation") {
		t.Errorf("Len() = %d, want %d", pb.Len(), len("Observation"))
	}
	pb.Release()

	pb2 := AcquirePathBuilder()
	defer pb2.Release()
	if pb2.Len() != 0 {
		t.Errorf("acquired builder should be empty, Len() = %d", pb2.Len())
	}
}

func TestPath(t *testing.T) {
	var p Path
	if p.String() != "" {
		t.Errorf("empty Path String() = %q, want empty", p.String())
	}

	p.Push("Patient")
	p.Push("name")
	p.SetIndex(1)
	p.Push("given")
	p.SetIndex(0)

	if got := p.String(); got != "Patient.name[1].given[0]" {
		t.Errorf("String() = %q, want Patient.name[1].given[0]", got)
	}
	if p.Depth() != 3 {
		t.Errorf("Depth() = %d, want 3", p.Depth())
	}
	if p.Last() != "given" {
		t.Errorf("Last() = %q, want given", p.Last())
	}

	p.Pop()
	p.Push("family")
	if got := p.String(); got != "Patient.name[1].family" {
		t.Errorf("String() = %q, want Patient.name[1].family", got)
	}

	p.Pop()
	p.Pop()
	p.Pop()
	p.Pop() // popping an empty path is a no-op
	if p.Depth() != 0 {
		t.Errorf("Depth() = %d, want 0", p.Depth())
	}
}
