package reply

// Fixed replies. Links to the subscription page are appended where needed.
const (
	textFailure  = "⚠️ Ocorreu um erro ao processar sua solicitação."
	textRephrase = "🤔 Não consegui entender bem o que você quis dizer. Pode reformular?"
	textShort    = "👋 Oi! Tudo bem? Pode me dizer o que deseja fazer? 😊"
	textAudio    = "🎧 Não consegui entender seu áudio. Pode tentar de novo em um áudio curto ou mandar por texto?"
	textNoLink   = "⚠️ Não consegui gerar seu link de acesso agora. Tente novamente em instantes."

	textHelp = "🤖 Oi! Eu sou a *Lume*, sua assistente financeira. 😊\n\n" +
		"Posso te ajudar a *registrar um gasto ou ganho*, *consultar seu resumo financeiro* ou *criar uma tarefa*.\n" +
		"Exemplos:\n" +
		"• 💸 'Gastei 50 reais com mercado'\n" +
		"• 📊 'Quanto gastei este mês?'\n" +
		"• 🧽 'Lavar o carro amanhã às 13h'\n" +
		"• 📅 'Adicionar reunião terça às 10h'\n\n" +
		"Tente mandar algo nesse formato que eu entendo rapidinho!"

	textWelcomeHead = "👋 Olá! Eu sou a *Lume*, sua assistente financeira. 😊\n\n"
	textWelcomeBody = "Posso te ajudar com:\n" +
		"• 💸 Registrar um gasto ou ganho\n" +
		"• 📊 Ver seu resumo financeiro\n" +
		"• 📝 Criar uma tarefa com horário\n\n" +
		"Tente enviar algo como:\n" +
		"• 'Gastei 50 com gasolina'\n" +
		"• 'Quanto gastei este mês?'\n" +
		"• 'Lavar o carro amanhã às 13h'"

	textExpired = "🚫 *Seu plano expirou!*\n\n" +
		"💎 Ative o *Plano PREMIUM* para continuar usando o Finia sem limites:\n" +
		"👉 %s"
	textTrialLedger = "📈 Você atingiu o limite de %d transações do período de teste.\n" +
		"💎 *Ative o Plano PREMIUM* e continue registrando seus gastos:\n" +
		"👉 %s"
	textTrialInteractions = "📈 Você atingiu o limite de %d mensagens do período de teste.\n" +
		"💎 *Ative o Plano PREMIUM* para continuar usando o Finia sem limites:\n" +
		"👉 %s"

	textAccessLink = "🔐 *Seu acesso ao painel Finia*\n\n" +
		"Toque no link para entrar. Ele vale por %d minutos e só pode ser usado uma vez:\n%s"
)
