package service

import (
	"testing"
)

// TestRegistryAddRemove 测试连接登记与摘除
func TestRegistryAddRemove(t *testing.T) {
	r := NewConnectionRegistry()

	r.Add("u1", "c1", nil)
	r.Add("u1", "c2", nil)
	r.Add("u2", "c3", nil)

	if !r.HasUser("u1") || !r.HasUser("u2") {
		t.Fatal("registered users should be present")
	}
	if got := len(r.ConnectionsOf("u1")); got != 2 {
		t.Fatalf("u1 should have 2 connections, got %d", got)
	}
	if got := len(r.UserIDs()); got != 2 {
		t.Fatalf("expected 2 users, got %d", got)
	}

	if !r.Remove("u1", "c1") {
		t.Fatal("removing a present connection should report it")
	}
	if !r.Remove("u1", "c2") {
		t.Fatal("removing the last connection should report it")
	}
	if r.HasUser("u1") {
		t.Fatal("u1 should be gone after removing all connections")
	}
}

// TestRegistryRemoveIdempotent 测试重复摘除同一连接只有第一次生效
func TestRegistryRemoveIdempotent(t *testing.T) {
	r := NewConnectionRegistry()

	if r.Remove("ghost", "c1") {
		t.Fatal("unknown user should not report a removal")
	}

	r.Add("u1", "c1", nil)
	if r.Remove("u1", "other") {
		t.Fatal("unknown connID should not report a removal")
	}
	if !r.Remove("u1", "c1") {
		t.Fatal("first removal should report the handle")
	}
	if r.Remove("u1", "c1") {
		t.Fatal("second removal of the same connID should be a no-op")
	}
}

// TestRegistryAllConnections 测试全量连接拷贝
func TestRegistryAllConnections(t *testing.T) {
	r := NewConnectionRegistry()
	r.Add("u1", "c1", nil)
	r.Add("u2", "c2", nil)
	r.Add("u2", "c3", nil)

	if got := len(r.AllConnections()); got != 3 {
		t.Fatalf("expected 3 connections, got %d", got)
	}

	snapshot := r.Snapshot()
	if len(snapshot) != 2 || len(snapshot["u2"]) != 2 {
		t.Fatalf("unexpected snapshot: %v", snapshot)
	}
}
