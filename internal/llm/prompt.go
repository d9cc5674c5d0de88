package llm

import "fmt"

const maxPromptTextChars = 1200

// BuildPrompt renders the classification prompt, mirroring llm.py's
// _build_prompt wording and JSON-only instruction.
func BuildPrompt(title, text, region, source string) string {
	if len(text) > maxPromptTextChars {
		text = text[:maxPromptTextChars]
	}
	if region == "" {
		region = "не определён"
	}
	return fmt.Sprintf(`Проанализируй новость и определи её релевантность для мониторинга ЖКХ/промышленности.

ВХОДНЫЕ ДАННЫЕ:
Заголовок: %s
Источник: %s
Регион: %s
Текст: %s

КРИТИЧНО ИГНОРИРУЙ (relevance<=0.2, urgency<=2, action="ignore"):
- Событие УЖЕ ЗАВЕРШЕНО/УСТРАНЕНО (авария устранена, работы завершены, подача воды восстановлена)
- Смерть/гибель человека (если НЕ техногенная авария на инфраструктуре)
- Криминал, суд, арест, расследование
- Бытовые конфликты, квартирные вопросы
- Наличие слова "водоканал/насос" НЕ означает релевантность, если новость НЕ про аварию/отключение/ремонт

ТАКЖЕ ИГНОРИРУЙ (relevance=0):
- ДТП и автомобильные аварии
- Ремонт дорог и мостов
- Учения и тренировки
- Закупки, тендеры, финансы
- Метафоры ("политическая авария")

ВЫСОКАЯ РЕЛЕВАНТНОСТЬ (relevance>=0.7, urgency>=3):
- Прорывы труб водоснабжения/отопления (ТЕКУЩИЕ, не устранённые)
- Аварии на насосных станциях (КНС, ВНС)
- Остановки котельных
- Аварии на очистных сооружениях
- Серьёзные промышленные аварии

ОТВЕТЬ ТОЛЬКО ВАЛИДНЫМ JSON БЕЗ КАКОГО-ЛИБО ТЕКСТА ВОКРУГ:
{
  "event_type": "accident | outage | repair | other",
  "relevance": 0.0-1.0,
  "urgency": 1-5,
  "object": "water | heat | industrial | unknown",
  "why": "Краткое объяснение (1 предложение)",
  "action": "call | watch | ignore"
}`, title, source, region, text)
}

// RetryInstruction is appended to the prompt on the one allowed retry after
// an invalid-JSON response.
const RetryInstruction = "\n\nВерни строго JSON без какого-либо обрамления или текста вокруг."
