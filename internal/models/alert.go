package models

// Button - интерактивная кнопка под сообщением в канале алертов.
// Data попадает в callback при нажатии (формат: "buy_<mint>" / "sell_<mint>").
type Button struct {
	Text string
	Data string
}

// Keyboard - раскладка кнопок: внешний срез - строки, внутренний - кнопки в строке
type Keyboard [][]Button

// SingleButton возвращает клавиатуру из одной кнопки
func SingleButton(text, data string) Keyboard {
	return Keyboard{{Button{Text: text, Data: data}}}
}
