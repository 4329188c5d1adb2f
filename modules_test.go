package txn

import "testing"

func TestModulesFirstSeenOrder(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenOrCreate(dir, false)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	defer j.Close()

	j.Append("webapp", ActionCreate, "/srv/webapp/a")
	j.Append("cli-tools", ActionCreate, "/usr/local/bin/tool")
	j.Append("webapp", ActionPatch, "/srv/webapp/b")

	got, err := Modules(j)
	if err != nil {
		t.Fatalf("Modules: %v", err)
	}
	want := []string{"webapp", "cli-tools"}
	if len(got) != len(want) {
		t.Fatalf("Modules() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Modules()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestModulesOmitsFullyUndoneModule(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenOrCreate(dir, false)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	defer j.Close()

	rec, err := j.Append("webapp", ActionCreate, "/srv/webapp/a")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.RewriteAction(0, rec.Module, ActionUncreate); err != nil {
		t.Fatalf("RewriteAction: %v", err)
	}

	got, err := Modules(j)
	if err != nil {
		t.Fatalf("Modules: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Modules() = %v, want empty", got)
	}
}
