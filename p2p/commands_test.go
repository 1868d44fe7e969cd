package p2p

import "testing"

func TestCommandIDStringTable(t *testing.T) {
	cases := map[CommandID]string{
		CmdHello:           "Hello",
		CmdDisconnect:      "Disconnect",
		CmdPing:            "Ping",
		CmdPong:            "Pong",
		CmdGetPeers:        "GetPeers",
		CmdPeers:           "Peers",
		CmdStatus:          "Status",
		CmdTransactions:    "Transactions",
		CmdGetTransactions: "GetTransactions",
		CmdBlocks:          "Blocks",
		CmdGetBlocks:       "GetBlocks",
		CmdBlockHashes:     "BlockHashes",
		CmdGetBlockHashes:  "GetBlockHashes",
	}
	for id, want := range cases {
		if got := id.String(); got != want {
			t.Errorf("CommandID(%d).String() = %q, want %q", id, got, want)
		}
	}
}

func TestCommandIDStringUnknown(t *testing.T) {
	if got := CommandID(999).String(); got != "Unknown" {
		t.Fatalf("unknown command id String() = %q, want Unknown", got)
	}
}

func TestDisconnectReasonForget(t *testing.T) {
	forget := []DisconnectReason{ReasonBadProtocol, ReasonIncompatibleProtocol, ReasonWrongGenesis}
	for _, r := range forget {
		if !r.Forget() {
			t.Errorf("%v.Forget() = false, want true", r)
		}
	}
	retry := []DisconnectReason{ReasonRequested, ReasonTCPError, ReasonTooManyPeers, ReasonTimeout, ReasonQuitting}
	for _, r := range retry {
		if r.Forget() {
			t.Errorf("%v.Forget() = true, want false", r)
		}
	}
}

func TestDisconnectReasonStringUnknown(t *testing.T) {
	if got := DisconnectReason(999).String(); got != "Unknown reason" {
		t.Fatalf("unknown reason String() = %q, want Unknown reason", got)
	}
}

func TestClampTruncatesOverMax(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	got := Clamp(items, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
}

func TestClampLeavesUnderMaxAlone(t *testing.T) {
	items := []int{1, 2}
	got := Clamp(items, 10)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}
