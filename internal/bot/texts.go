package bot

import (
	"fmt"
	"strings"
)

const (
	helpHeader = "Доступные команды:\n"

	textGenericFailure = "Что-то пошло не так, прошу повторите запрос"
	textHistoryHeader  = "Ваша история команд:\n"
	textHistoryEmpty   = "У вас нет сохраненных команд в истории."
	textNoForecast     = "Прогноз погоды для этого города недоступен"

	textDialogBusy    = "У вас уже есть незавершенный запрос. Начать новый или продолжить текущий?"
	textDialogKept    = "Продолжаем текущий запрос."
	textCancelled     = "Запрос отменен."
	textNothingActive = "Нет активного запроса."
	textUnknown       = "Я не понимаю это сообщение. Напишите /help, чтобы узнать доступные команды."
	textRateLimited   = "Слишком много сообщений, подождите немного."
	textNotAllowed    = "Команда недоступна."

	btnRestart = "Начать новый"
	btnKeep    = "Продолжить"
)

// helpLines is the /help body in menu order.
var helpLines = []string{
	"/start - запустить бота",
	"/help - посмотреть доступные команды",
	"/low - найти самые дешевые авиабилеты",
	"/high - найти самые поздние даты вылета",
	"/custom - найти билеты в диапазоне цен",
	"/weather - узнать погоду на ближайшие 21 день в выбранном городе",
	"/history - показать последние 10 запросов",
}

func greeting(firstName string) string {
	return fmt.Sprintf("Привет, %s! Я бот помогающий найти авиабилеты и узнать погоду в нужном Вам городе. "+
		"Напишите команду /help для того, чтобы узнать доступные команды!", firstName)
}

func helpText() string {
	return helpHeader + strings.Join(helpLines, "\n")
}

func historyText(commands []string) string {
	if len(commands) == 0 {
		return textHistoryEmpty
	}
	return textHistoryHeader + strings.Join(commands, "\n")
}
