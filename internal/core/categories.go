package core

var (
	incomeCategories  = []string{"給料", "立替回収", "配当金", "利息", "その他"}
	expenseCategories = []string{"食費", "交通費", "立替", "日用品", "趣味", "その他"}
)

// CategoriesFor returns the category options offered for t, in display
// order. The result is a copy and may be modified by the caller.
func CategoriesFor(t EntryType) []string {
	var src []string
	switch t {
	case Income:
		src = incomeCategories
	case Expense:
		src = expenseCategories
	default:
		return nil
	}
	return append([]string(nil), src...)
}

func IsValidCategory(t EntryType, category string) bool {
	for _, c := range CategoriesFor(t) {
		if c == category {
			return true
		}
	}
	return false
}
