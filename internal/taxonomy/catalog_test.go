package taxonomy

import (
	"testing"

	"kakeibo/internal/core"
)

func TestCategoriesCatalog(t *testing.T) {
	cats := Categories()
	var income, expense int
	seen := map[core.CategoryKey]bool{}
	for _, c := range cats {
		if seen[c.Key()] {
			t.Fatalf("duplicate default category %v", c.Key())
		}
		seen[c.Key()] = true
		switch c.Type {
		case core.Income:
			income++
		case core.Expense:
			expense++
		default:
			t.Fatalf("invalid type for %s", c.Name)
		}
	}
	if expense != 9 || income != 3 {
		t.Fatalf("expected 9 expense and 3 income, got %d and %d", expense, income)
	}
}

func TestCategoriesReturnsCopy(t *testing.T) {
	cats := Categories()
	cats[0].Name = "changed"
	if Categories()[0].Name != "食費" {
		t.Fatalf("catalog mutated through returned slice")
	}
}

func TestSubcategoriesCatalog(t *testing.T) {
	subs := Subcategories()
	if len(subs) != 42 {
		t.Fatalf("expected 42 default subcategories, got %d", len(subs))
	}
	seen := map[DefaultSubcategory]bool{}
	for _, s := range subs {
		if seen[s] {
			t.Fatalf("duplicate subcategory %+v", s)
		}
		seen[s] = true
	}

	orphans := map[string]bool{}
	for _, s := range subs {
		if !IsDefault(s.ParentKey()) {
			orphans[s.CategoryName] = true
		}
	}
	for _, name := range []string{"通信費", "衣類", "その他支出", "副収入"} {
		if !orphans[name] {
			t.Errorf("expected %s to have no default parent", name)
		}
	}
	if len(orphans) != 4 {
		t.Errorf("unexpected orphan parents: %v", orphans)
	}
}
