package fallback

import "strings"

// synonymGroups lists ingredient names that substitute for each other.
var synonymGroups = [][]string{
	{"cilantro", "coriander", "dhania"},
	{"scallion", "green onion", "spring onion"},
	{"bell pepper", "capsicum"},
	{"eggplant", "aubergine", "brinjal"},
	{"zucchini", "courgette"},
	{"chickpea", "garbanzo", "chana"},
	{"shrimp", "prawn"},
	{"yogurt", "curd", "dahi"},
	{"chili", "chilli", "chile"},
	{"arugula", "rocket"},
	{"cornstarch", "cornflour"},
	{"powdered sugar", "icing sugar"},
	{"heavy cream", "double cream"},
	{"ground beef", "beef mince", "minced beef"},
	{"pasta", "spaghetti", "penne", "fettuccine"},
}

// essentials are pantry staples that never count as missing.
var essentials = map[string]struct{}{
	"salt":   {},
	"oil":    {},
	"water":  {},
	"onion":  {},
	"garlic": {},
	"ginger": {},
}

func buildSynonymIndex(groups [][]string) map[string][]string {
	index := make(map[string][]string)
	for _, group := range groups {
		for _, term := range group {
			for _, alt := range group {
				if alt != term {
					index[term] = append(index[term], alt)
				}
			}
		}
	}
	return index
}

// isEssential reports whether any word of an ingredient name is a staple,
// so "olive oil" and "garlic cloves" are essential but "green beans" is not.
func isEssential(name string) bool {
	for _, word := range strings.Fields(name) {
		word = strings.TrimSuffix(word, "s")
		if _, ok := essentials[word]; ok {
			return true
		}
	}
	return false
}
