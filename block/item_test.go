package block

import (
	"errors"
	"reflect"
	"testing"
)

func TestItem_Kinds(t *testing.T) {
	if k := Nil[int]().Kind(); k != Empty {
		t.Errorf("expected Empty, got %s", k)
	}
	if k := Of(1).Kind(); k != Single {
		t.Errorf("expected Single, got %s", k)
	}
	batch, err := BatchOf([]int{1, 2})
	if err != nil {
		t.Fatalf("BatchOf: %v", err)
	}
	if k := batch.Kind(); k != Batch {
		t.Errorf("expected Batch, got %s", k)
	}
}

func TestItem_BatchOfRejectsEmpty(t *testing.T) {
	if _, err := BatchOf([]int{}); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestItem_SingleTypeMismatch(t *testing.T) {
	batch, _ := BatchOf([]int{1, 2})
	if _, err := batch.Single(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
	if _, err := Nil[int]().BatchSlice(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestItem_Size(t *testing.T) {
	if Nil[int]().Size() != 0 {
		t.Error("expected Empty size 0")
	}
	if Of(1).Size() != 1 {
		t.Error("expected Single size 1")
	}
	batch, _ := BatchOf([]int{1, 2, 3})
	if batch.Size() != 3 {
		t.Error("expected Batch size 3")
	}
}

func TestItem_Values(t *testing.T) {
	if got := Nil[int]().Values(); got != nil {
		t.Errorf("expected nil values for Empty, got %v", got)
	}
	if got := Of(5).Values(); !reflect.DeepEqual(got, []int{5}) {
		t.Errorf("expected [5], got %v", got)
	}
	batch, _ := BatchOf([]int{1, 2, 3})
	if got := batch.Values(); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("expected [1 2 3], got %v", got)
	}
}

func TestItem_ForEach(t *testing.T) {
	var got []int
	batch, _ := BatchOf([]int{1, 2, 3})
	batch.ForEach(func(v int) { got = append(got, v) })
	if !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("expected [1 2 3], got %v", got)
	}

	got = nil
	Nil[int]().ForEach(func(v int) { got = append(got, v) })
	if got != nil {
		t.Errorf("expected ForEach on Empty to call nothing, got %v", got)
	}
}

func TestItem_FilterSingle(t *testing.T) {
	kept := Of(4).Filter(func(v int) bool { return v%2 == 0 })
	if kept.Kind() != Single {
		t.Errorf("expected a matching Single to stay Single, got %s", kept.Kind())
	}

	dropped := Of(3).Filter(func(v int) bool { return v%2 == 0 })
	if !dropped.IsEmpty() {
		t.Errorf("expected a non-matching Single to become Empty, got %s", dropped.Kind())
	}
}

func TestItem_FilterBatchCollapsesToSingle(t *testing.T) {
	batch, _ := BatchOf([]int{1, 2, 3, 4, 5})
	kept := batch.Filter(func(v int) bool { return v == 3 })
	if kept.Kind() != Single {
		t.Errorf("expected a one-element filter result to collapse to Single, got %s", kept.Kind())
	}
	v, err := kept.Single()
	if err != nil || v != 3 {
		t.Errorf("expected Single(3), got %v err=%v", v, err)
	}
}

func TestItem_FilterBatchAllDroppedBecomesEmpty(t *testing.T) {
	batch, _ := BatchOf([]int{1, 2, 3})
	kept := batch.Filter(func(v int) bool { return false })
	if !kept.IsEmpty() {
		t.Errorf("expected Empty, got %s", kept.Kind())
	}
}

func TestItem_FilterBatchPreservesOrder(t *testing.T) {
	batch, _ := BatchOf([]int{5, 1, 4, 2, 3})
	kept := batch.Filter(func(v int) bool { return v >= 2 })
	values, err := kept.BatchSlice()
	if err != nil {
		t.Fatalf("BatchSlice: %v", err)
	}
	if !reflect.DeepEqual(values, []int{5, 4, 2, 3}) {
		t.Errorf("expected order preserved [5 4 2 3], got %v", values)
	}
}
