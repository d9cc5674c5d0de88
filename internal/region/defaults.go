package region

// defaultMappings mirrors region.py's _default_mappings.
var defaultMappings = map[string]string{
	"москва":              "Москва",
	"санкт-петербург":     "Санкт-Петербург",
	"петербург":           "Санкт-Петербург",
	"спб":                 "Санкт-Петербург",
	"екатеринбург":        "Свердловская область",
	"новосибирск":         "Новосибирская область",
	"казань":              "Республика Татарстан",
	"нижний новгород":     "Нижегородская область",
	"челябинск":           "Челябинская область",
	"самара":              "Самарская область",
	"уфа":                 "Республика Башкортостан",
	"ростов-на-дону":      "Ростовская область",
	"ростов":              "Ростовская область",
	"краснодар":           "Краснодарский край",
	"воронеж":             "Воронежская область",
	"пермь":               "Пермский край",
	"красноярск":          "Красноярский край",
	"волгоград":           "Волгоградская область",
	"омск":                "Омская область",
	"тюмень":              "Тюменская область",
	"владивосток":         "Приморский край",
	"хабаровск":           "Хабаровский край",
	"ярославль":           "Ярославская область",
	"архангельск":         "Архангельская область",
	"сахалин":             "Сахалинская область",
	"свердловская область": "Свердловская область",
	"ленобласть":          "Ленинградская область",
	"ленинградская область": "Ленинградская область",
	"московская область":  "Московская область",
	"подмосковье":         "Московская область",
}
