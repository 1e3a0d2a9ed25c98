package bot

const msgStart = `Привет! Я - бот для проведения квизов.

Напишите "помощь", чтобы узнать, что я умею.`

const msgHelp = `Инструкции при работе со мной:

1) Дождитесь от администратора начала квиза
2) Отвечайте на вопросы в этом чате
3) Получите от меня свой результат.`

const msgGreeting = `Добро пожаловать! Напишите "начать", чтобы начать работу со мной.`

const msgUnknownCommand = `Я не понял сообщение. Напишите "помощь", чтобы увидеть список команд.`
