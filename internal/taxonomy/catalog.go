// Package taxonomy holds the default category and subcategory catalogs
// seeded for new users.
package taxonomy

import "kakeibo/internal/core"

// DefaultCategory is one entry of the default category catalog.
type DefaultCategory struct {
	Name string
	Type core.TransactionType
}

// Key returns the (name, type) pair used to match existing categories.
func (d DefaultCategory) Key() core.CategoryKey {
	return core.CategoryKey{Name: d.Name, Type: d.Type}
}

// DefaultSubcategory is one entry of the default subcategory catalog.
// The parent is looked up by name and type among the user's categories.
type DefaultSubcategory struct {
	CategoryName string
	Name         string
	Type         core.TransactionType
}

// ParentKey returns the (name, type) pair of the parent category.
func (d DefaultSubcategory) ParentKey() core.CategoryKey {
	return core.CategoryKey{Name: d.CategoryName, Type: d.Type}
}

var defaultCategories = []DefaultCategory{
	{"食費", core.Expense},
	{"日用品", core.Expense},
	{"交通費", core.Expense},
	{"光熱費", core.Expense},
	{"住居費", core.Expense},
	{"医療費", core.Expense},
	{"教育費", core.Expense},
	{"娯楽費", core.Expense},
	{"その他", core.Expense},

	{"給与", core.Income},
	{"賞与", core.Income},
	{"その他収入", core.Income},
}

// Some parents (通信費, 衣類, その他支出, 副収入) are not default categories.
// Their entries only apply once the user has created the parent.
var defaultSubcategories = []DefaultSubcategory{
	{"食費", "外食", core.Expense},
	{"食費", "食材", core.Expense},
	{"食費", "お弁当", core.Expense},
	{"食費", "お菓子・飲み物", core.Expense},

	{"交通費", "電車", core.Expense},
	{"交通費", "バス", core.Expense},
	{"交通費", "タクシー", core.Expense},
	{"交通費", "ガソリン", core.Expense},

	{"娯楽費", "映画・動画", core.Expense},
	{"娯楽費", "ゲーム", core.Expense},
	{"娯楽費", "スポーツ", core.Expense},
	{"娯楽費", "読書", core.Expense},

	{"日用品", "洗剤・掃除用品", core.Expense},
	{"日用品", "ティッシュ・トイレットペーパー", core.Expense},
	{"日用品", "バス・シャンプー", core.Expense},

	{"光熱費", "電気代", core.Expense},
	{"光熱費", "ガス代", core.Expense},
	{"光熱費", "水道代", core.Expense},

	{"通信費", "携帯電話", core.Expense},
	{"通信費", "インターネット", core.Expense},
	{"通信費", "サブスクリプション", core.Expense},

	{"医療費", "病院", core.Expense},
	{"医療費", "薬局", core.Expense},
	{"医療費", "健康診断", core.Expense},

	{"教育費", "書籍", core.Expense},
	{"教育費", "オンライン学習", core.Expense},
	{"教育費", "セミナー・講座", core.Expense},

	{"衣類", "洋服", core.Expense},
	{"衣類", "靴", core.Expense},
	{"衣類", "アクセサリー", core.Expense},

	{"その他支出", "プレゼント", core.Expense},
	{"その他支出", "寄付", core.Expense},

	{"給与", "基本給", core.Income},
	{"給与", "残業代", core.Income},
	{"給与", "ボーナス", core.Income},
	{"給与", "交通費支給", core.Income},

	{"副収入", "フリーランス", core.Income},
	{"副収入", "アルバイト", core.Income},
	{"副収入", "投資収益", core.Income},

	{"その他収入", "お祝い金", core.Income},
	{"その他収入", "還付金", core.Income},
	{"その他収入", "ポイント・キャッシュバック", core.Income},
}

// Categories returns a copy of the default category catalog in seeding order.
func Categories() []DefaultCategory {
	out := make([]DefaultCategory, len(defaultCategories))
	copy(out, defaultCategories)
	return out
}

// Subcategories returns a copy of the default subcategory catalog.
func Subcategories() []DefaultSubcategory {
	out := make([]DefaultSubcategory, len(defaultSubcategories))
	copy(out, defaultSubcategories)
	return out
}

// IsDefault reports whether (name, type) is in the default category catalog.
func IsDefault(key core.CategoryKey) bool {
	for _, c := range defaultCategories {
		if c.Key() == key {
			return true
		}
	}
	return false
}
