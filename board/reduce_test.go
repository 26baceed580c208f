package board

import (
	"reflect"
	"strings"
	"testing"
)

func TestMergeAppendFieldsAccumulate(t *testing.T) {
	// Final length of an append-policy field equals the sum of all
	// individually applied patch lengths, preserving arrival order.
	state := New("t-1", "u-1")

	patches := [][]Message{
		{{Role: RoleUser, Content: "first"}},
		{{Role: RoleAssistant, Content: "second"}, {Role: RoleUser, Content: "third"}},
		{},
		{{Role: RoleAssistant, Content: "fourth"}},
	}

	total := 0
	for _, msgs := range patches {
		state = Merge(state, Patch{ConversationHistory: msgs})
		total += len(msgs)
	}

	if len(state.ConversationHistory) != total {
		t.Fatalf("history length = %d, want %d", len(state.ConversationHistory), total)
	}

	want := []string{"first", "second", "third", "fourth"}
	for i, content := range want {
		if state.ConversationHistory[i].Content != content {
			t.Errorf("history[%d] = %q, want %q (order must be arrival order)",
				i, state.ConversationHistory[i].Content, content)
		}
	}
}

func TestMergeReplaceFieldsLastWriterWins(t *testing.T) {
	state := New("t-1", "u-1")

	state = Merge(state, Patch{UserProfile: &UserProfile{Name: "Ada"}})
	state = Merge(state, Patch{UserProfile: &UserProfile{Name: "Grace"}})

	if state.UserProfile == nil || state.UserProfile.Name != "Grace" {
		t.Fatalf("user profile = %+v, want replaced wholesale with Grace", state.UserProfile)
	}

	// A patch that omits a replace-policy field leaves it untouched.
	state = Merge(state, Patch{ActiveNode: "router"})
	if state.UserProfile == nil || state.UserProfile.Name != "Grace" {
		t.Fatalf("user profile lost by unrelated patch: %+v", state.UserProfile)
	}
}

func TestMergeDoesNotMutatePrevious(t *testing.T) {
	prev := New("t-1", "u-1")
	prev = Merge(prev, Patch{
		ConversationHistory: []Message{{Role: RoleUser, Content: "hello"}},
		JobCatalog:          map[string]Job{"j1": {ID: "j1", Title: "Engineer"}},
		Metadata:            map[string]string{"k": "v"},
	})

	next := Merge(prev, Patch{
		ConversationHistory: []Message{{Role: RoleAssistant, Content: "hi"}},
		JobCatalog:          map[string]Job{"j2": {ID: "j2", Title: "Analyst"}},
		Metadata:            map[string]string{"k": "changed"},
	})

	if len(prev.ConversationHistory) != 1 {
		t.Errorf("previous history mutated: len = %d", len(prev.ConversationHistory))
	}
	if len(prev.JobCatalog) != 1 {
		t.Errorf("previous catalog mutated: len = %d", len(prev.JobCatalog))
	}
	if prev.Metadata["k"] != "v" {
		t.Errorf("previous metadata mutated: %q", prev.Metadata["k"])
	}
	if len(next.ConversationHistory) != 2 || len(next.JobCatalog) != 2 {
		t.Errorf("merge result incomplete: history=%d catalog=%d",
			len(next.ConversationHistory), len(next.JobCatalog))
	}
}

func TestMergeJobCatalogKeyUnion(t *testing.T) {
	state := New("t-1", "u-1")
	state = Merge(state, Patch{JobCatalog: map[string]Job{
		"j1": {ID: "j1", Title: "Engineer"},
		"j2": {ID: "j2", Title: "Analyst"},
	}})
	state = Merge(state, Patch{JobCatalog: map[string]Job{
		"j2": {ID: "j2", Title: "Senior Analyst"}, // existing key overwritten
		"j3": {ID: "j3", Title: "Manager"},
	}})

	if len(state.JobCatalog) != 3 {
		t.Fatalf("catalog size = %d, want 3", len(state.JobCatalog))
	}
	if state.JobCatalog["j2"].Title != "Senior Analyst" {
		t.Errorf("j2 title = %q, want updated value", state.JobCatalog["j2"].Title)
	}
}

func TestMergeMetadataUnionsByKey(t *testing.T) {
	state := New("t-1", "u-1")
	state = Merge(state, Patch{Metadata: map[string]string{
		"lastIntent": "coach",
		"lastError":  "timeout",
	}})
	state = Merge(state, Patch{Metadata: map[string]string{
		"lastIntent": "generate", // existing key overwritten
	}})

	if state.Metadata["lastIntent"] != "generate" {
		t.Errorf("lastIntent = %q, want newest value", state.Metadata["lastIntent"])
	}
	if state.Metadata["lastError"] != "timeout" {
		t.Errorf("lastError = %q, untouched keys must survive", state.Metadata["lastError"])
	}
	// Creation-time keys from New stay present too.
	if state.Metadata["schemaVersion"] == "" {
		t.Error("creation metadata dropped by union")
	}
}

func TestMergeIdentityIsImmutable(t *testing.T) {
	state := New("t-1", "u-1")
	state = Merge(state, Patch{UserID: "intruder"})
	if state.UserID != "u-1" {
		t.Fatalf("userId overwritten to %q, identity must be immutable", state.UserID)
	}

	// UserID is applied only when the state carries none yet.
	fresh := State{ThreadID: "t-2"}
	fresh = Merge(fresh, Patch{UserID: "u-2"})
	if fresh.UserID != "u-2" {
		t.Fatalf("userId not set at creation: %q", fresh.UserID)
	}
}

func TestMergeRoutingSignalAndActiveNode(t *testing.T) {
	state := New("t-1", "u-1")
	state = Merge(state, Patch{ActiveNode: "router", RoutingSignal: RouteTo("generator")})

	if state.ActiveNode != "router" {
		t.Errorf("activeNode = %q", state.ActiveNode)
	}
	if state.RoutingSignal != RouteTo("generator") {
		t.Errorf("routingSignal = %q", state.RoutingSignal)
	}

	// Empty signal in a later patch must not clear the previous one.
	state = Merge(state, Patch{ActiveNode: "generator"})
	if state.RoutingSignal != RouteTo("generator") {
		t.Errorf("routingSignal cleared by empty patch: %q", state.RoutingSignal)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	state := New("t-1", "u-1")
	state = Merge(state, Patch{
		ConversationHistory: []Message{{Role: RoleUser, Content: "hello"}},
		UserProfile:         &UserProfile{Name: "Ada", Skills: []string{"go"}},
	})

	copied, err := Clone(state)
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}

	copied.UserProfile.Name = "changed"
	copied.ConversationHistory[0].Content = "changed"

	if state.UserProfile.Name != "Ada" {
		t.Errorf("clone aliases profile: %q", state.UserProfile.Name)
	}
	if state.ConversationHistory[0].Content != "hello" {
		t.Errorf("clone aliases history: %q", state.ConversationHistory[0].Content)
	}
}

// TestPoliciesCoverState guards the reducer table: every JSON field of State
// must have exactly one policy entry, and every entry must name a real field.
func TestPoliciesCoverState(t *testing.T) {
	fields := map[string]bool{}
	typ := reflect.TypeOf(State{})
	for i := 0; i < typ.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			t.Fatalf("State field %s has no json name", typ.Field(i).Name)
		}
		fields[name] = true
		if _, ok := Policies[name]; !ok {
			t.Errorf("State field %q has no reducer policy", name)
		}
	}
	for name := range Policies {
		if !fields[name] {
			t.Errorf("policy entry %q names no State field", name)
		}
	}
}

func TestValidatePatch(t *testing.T) {
	known := func(node string) bool { return node == "generator" || node == "router" }

	tests := []struct {
		name    string
		patch   Patch
		wantErr bool
	}{
		{"done is valid", Patch{RoutingSignal: SignalDone}, false},
		{"error is valid", Patch{RoutingSignal: SignalError}, false},
		{"unset is valid", Patch{}, false},
		{"known route", Patch{RoutingSignal: RouteTo("generator")}, false},
		{"unknown route", Patch{RoutingSignal: RouteTo("nonexistent")}, true},
		{"malformed signal", Patch{RoutingSignal: Signal("jump-to-generator")}, true},
		{"bare prefix", Patch{RoutingSignal: Signal("route-to-")}, true},
		{"message without role", Patch{
			RoutingSignal:       SignalDone,
			ConversationHistory: []Message{{Content: "no role"}},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePatch(tt.patch, known)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePatch() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	// Without a registry check, a well-formed route to an unknown node is
	// acceptable; the engine's hub fallback resolves it. Malformed signals
	// and roleless messages stay invalid.
	if err := ValidatePatch(Patch{RoutingSignal: RouteTo("nonexistent")}, nil); err != nil {
		t.Errorf("nil known rejected a well-formed route: %v", err)
	}
	if err := ValidatePatch(Patch{RoutingSignal: Signal("route-to-")}, nil); err == nil {
		t.Error("nil known accepted a malformed signal")
	}
	if err := ValidatePatch(Patch{ConversationHistory: []Message{{Content: "no role"}}}, nil); err == nil {
		t.Error("nil known accepted a roleless message")
	}
}

func TestSignalTarget(t *testing.T) {
	tests := []struct {
		signal   Signal
		wantNode string
		wantOK   bool
	}{
		{RouteTo("coach"), "coach", true},
		{SignalDone, "", false},
		{SignalError, "", false},
		{SignalNone, "", false},
		{Signal("route-to-"), "", false},
		{Signal("garbage"), "", false},
	}

	for _, tt := range tests {
		node, ok := tt.signal.Target()
		if node != tt.wantNode || ok != tt.wantOK {
			t.Errorf("Target(%q) = (%q, %v), want (%q, %v)",
				tt.signal, node, ok, tt.wantNode, tt.wantOK)
		}
	}

	if !SignalDone.Terminal() || !SignalError.Terminal() {
		t.Error("done and error must be terminal")
	}
	if RouteTo("router").Terminal() || SignalNone.Terminal() {
		t.Error("route signals and unset must not be terminal")
	}
}
