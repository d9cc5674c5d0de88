package filter1

// DefaultKeywords mirrors filter1.py's DEFAULT_KEYWORDS.
var DefaultKeywords = Keywords{
	Positive: map[string][]string{
		"accident": {
			"авария", "прорыв", "утечка", "порыв", "остановка",
			"вышел из строя", "ЧП", "чрезвычайная ситуация", "аварийный",
		},
		"repair": {
			"ремонт", "срочный ремонт", "капремонт", "капитальный ремонт",
			"замена", "реконструкция", "модернизация", "восстановление",
		},
		"infrastructure": {
			"водоканал", "насосная станция", "КНС", "ВНС",
			"котельная", "теплосети", "очистные сооружения",
			"водопровод", "канализация", "теплотрасса",
		},
		"industrial": {
			"цех", "агрегат", "производство", "простой",
			"технологический сбой", "остановка производства",
		},
	},
	Negative: []string{
		"ДТП", "дорожно-транспортное происшествие",
		"ремонт дороги", "ремонт моста", "дорожные работы",
		"учения", "тренировка", "условная авария", "плановые учения",
		"квартира", "подъезд", "бытовой", "домашний",
		"автомобиль", "машина столкнулась",
	},
}

// DefaultWeights mirrors filter1.py's DEFAULT_WEIGHTS.
var DefaultWeights = Weights{
	Category: map[string]int{
		"accident":       3,
		"repair":         2,
		"infrastructure": 4,
		"industrial":     2,
	},
	Negative: -5,
}

// DefaultEventCategories and DefaultObjectCategories split DefaultKeywords'
// categories into the two halves the combo gate requires one of each from.
var (
	DefaultEventCategories  = []string{"accident", "repair"}
	DefaultObjectCategories = []string{"infrastructure", "industrial"}
)
