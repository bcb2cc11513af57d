package normalizer

// DefaultTable is the built-in unit weight table: average grams per single piece.
// Longer keys come before the shorter keys they contain.
var DefaultTable = MustNewTable([]Entry{
	// English
	{Key: "pineapple", Grams: 900},
	{Key: "apple", Grams: 180},
	{Key: "eggplant", Grams: 450},
	{Key: "egg", Grams: 50},
	{Key: "breadfruit", Grams: 500},
	{Key: "bread", Grams: 30},
	{Key: "almond", Grams: 1.2},
	{Key: "walnut", Grams: 4},
	{Key: "cashew", Grams: 1.5},
	{Key: "peanut", Grams: 0.7},
	{Key: "banana", Grams: 120},
	{Key: "orange", Grams: 130},
	{Key: "tangerine", Grams: 90},
	{Key: "kiwi", Grams: 75},
	{Key: "pear", Grams: 180},
	{Key: "peach", Grams: 150},
	{Key: "plum", Grams: 65},
	{Key: "apricot", Grams: 35},
	{Key: "strawberr", Grams: 12},
	{Key: "cherry tomato", Grams: 17},
	{Key: "tomato", Grams: 120},
	{Key: "cucumber", Grams: 200},
	{Key: "carrot", Grams: 60},
	{Key: "potato", Grams: 170},
	{Key: "olive", Grams: 4},
	{Key: "date", Grams: 8},
	{Key: "cookie", Grams: 15},
	{Key: "pita", Grams: 60},
	{Key: "tortilla", Grams: 45},

	// Hebrew
	{Key: "אננס", Grams: 900},
	{Key: "תפוח אדמה", Grams: 170},
	{Key: "תפוח", Grams: 180},
	{Key: "חציל", Grams: 450},
	{Key: "ביצה", Grams: 50},
	{Key: "ביצים", Grams: 50},
	{Key: "לחם", Grams: 30},
	{Key: "שקד", Grams: 1.2},
	{Key: "אגוז", Grams: 4},
	{Key: "בננה", Grams: 120},
	{Key: "תפוז", Grams: 130},
	{Key: "קלמנטינה", Grams: 90},
	{Key: "עגבניה", Grams: 120},
	{Key: "מלפפון", Grams: 200},
	{Key: "גזר", Grams: 60},
	{Key: "זית", Grams: 4},
	{Key: "תמר", Grams: 8},
	{Key: "פיתה", Grams: 60},
})
