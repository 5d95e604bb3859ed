package assignment

import (
	"testing"

	"github.com/hitoshi/classcal/internal/model"
)

func TestMatch_PrefixMatch(t *testing.T) {
	assignments := []*model.AssignmentDefinition{
		{Slug: "hw1", Title: "Homework 1"},
		{Slug: "hw2", Title: "Homework 2"},
	}

	got := Match("hw2-alice", assignments)
	if got == nil {
		t.Fatal("Match() は一致する課題を返すべき")
	}
	if got.Slug != "hw2" {
		t.Errorf("Slug = %q, want %q", got.Slug, "hw2")
	}
}

func TestMatch_CaseInsensitive(t *testing.T) {
	assignments := []*model.AssignmentDefinition{
		{Slug: "hw1", Title: "Homework 1"},
	}

	got := Match("HW1-Alice", assignments)
	if got == nil {
		t.Fatal("リポジトリ名は小文字化してから照合されるべき")
	}
	if got.Slug != "hw1" {
		t.Errorf("Slug = %q, want %q", got.Slug, "hw1")
	}
}

func TestMatch_NoMatch(t *testing.T) {
	assignments := []*model.AssignmentDefinition{
		{Slug: "hw1", Title: "Homework 1"},
	}

	if got := Match("project-alice", assignments); got != nil {
		t.Errorf("一致しないリポジトリ名にはnilを返すべき: got %+v", got)
	}
}

func TestMatch_FirstPrefixWins(t *testing.T) {
	// "hw1" が "hw1-extra" の前方一致になっているケース。
	// 一覧順に走査して最初の一致を返すため、hw1が先にあれば
	// hw1-extra-alice もhw1に解決される。
	assignments := []*model.AssignmentDefinition{
		{Slug: "hw1", Title: "Homework 1"},
		{Slug: "hw1-extra", Title: "Homework 1 Extra"},
	}

	got := Match("hw1-extra-alice", assignments)
	if got == nil {
		t.Fatal("Match() は一致する課題を返すべき")
	}
	if got.Slug != "hw1" {
		t.Errorf("先勝ちのタイブレーク: Slug = %q, want %q", got.Slug, "hw1")
	}
}

func TestMatch_EmptyAssignments(t *testing.T) {
	if got := Match("hw1-alice", nil); got != nil {
		t.Errorf("課題一覧が空の場合はnilを返すべき: got %+v", got)
	}
}
