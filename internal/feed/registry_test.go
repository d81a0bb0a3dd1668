package feed

import "testing"

func TestRegistryRoutesByTable(t *testing.T) {
	reg := NewRegistry()

	var table3, table7, firehose int
	reg.Watch("3", func() { table3++ })
	reg.Watch("7", func() { table7++ })
	reg.Watch("", func() { firehose++ })

	reg.Notify("3")

	if table3 != 1 {
		t.Errorf("table 3 watcher fired %d times, want 1", table3)
	}
	if table7 != 0 {
		t.Errorf("table 7 watcher fired %d times, want 0", table7)
	}
	if firehose != 1 {
		t.Errorf("firehose watcher fired %d times, want 1", firehose)
	}
}

func TestRegistryFirehoseNotification(t *testing.T) {
	reg := NewRegistry()

	var table3, firehose int
	reg.Watch("3", func() { table3++ })
	reg.Watch("", func() { firehose++ })

	// An empty-table notification (quick-sale order change) only reaches the
	// firehose.
	reg.Notify("")

	if table3 != 0 {
		t.Errorf("table watcher fired %d times on firehose notify, want 0", table3)
	}
	if firehose != 1 {
		t.Errorf("firehose watcher fired %d times, want 1", firehose)
	}
}

func TestRegistryCancel(t *testing.T) {
	reg := NewRegistry()

	fired := 0
	cancel := reg.Watch("3", func() { fired++ })
	keep := 0
	reg.Watch("3", func() { keep++ })

	cancel()
	cancel() // idempotent

	reg.Notify("3")
	if fired != 0 {
		t.Error("cancelled watcher still fired")
	}
	if keep != 1 {
		t.Errorf("surviving watcher fired %d times, want 1", keep)
	}
	if reg.WatcherCount() != 1 {
		t.Errorf("WatcherCount() = %d, want 1", reg.WatcherCount())
	}
}

func TestRegistryWatcherCount(t *testing.T) {
	reg := NewRegistry()
	c1 := reg.Watch("1", func() {})
	c2 := reg.Watch("", func() {})
	if reg.WatcherCount() != 2 {
		t.Fatalf("WatcherCount() = %d, want 2", reg.WatcherCount())
	}
	c1()
	c2()
	if reg.WatcherCount() != 0 {
		t.Errorf("WatcherCount() = %d after cancels, want 0", reg.WatcherCount())
	}
}
