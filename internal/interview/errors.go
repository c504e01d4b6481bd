package interview

import "errors"

var (
	ErrUnknownFormat            = errors.New("неизвестный формат интервью")
	ErrInvalidFormat            = errors.New("формат интервью не содержит вопросов")
	ErrSessionNotFound          = errors.New("сессия не найдена")
	ErrSessionAlreadyFinished   = errors.New("сессия уже завершена")
	ErrInterviewAlreadyFinished = errors.New("вопросы закончились, завершите интервью")
	ErrGenerator                = errors.New("ошибка генератора")
	ErrStore                    = errors.New("ошибка хранилища сессий")
	ErrConcurrentUpdate         = errors.New("сессия изменена параллельным запросом")
	// ErrInvariant нарушение внутреннего инварианта, повторять запрос бессмысленно
	ErrInvariant = errors.New("нарушен инвариант сессии")

	ErrMissingStore     = errors.New("не задано хранилище сессий")
	ErrMissingGenerator = errors.New("не задан генератор вопросов")
	ErrMissingRules     = errors.New("не загружены правила интервью")
)
