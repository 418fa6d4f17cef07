package core

// prompts.go holds the Portuguese replies sent to caregivers.  Keeping them
// together makes them easy to tweak without touching the conversation logic.

const (
	// PINPrompt greets an unknown sender and asks for the access PIN.
	PINPrompt = "Olá! 👋 Bem-vindo ao assistente de visitas domiciliares.\n" +
		"Por favor, informe seu *PIN de 6 dígitos* para continuar."

	// InvalidPINMessage is sent when the PIN is not exactly six digits.
	InvalidPINMessage = "❌ PIN inválido. O PIN deve conter exatamente *6 dígitos numéricos*. Tente novamente."

	// MenuMessage is the main menu shown after a successful authentication.
	MenuMessage = "✅ Autenticado com sucesso!\n\n" +
		"*Menu principal*\n" +
		"1️⃣ Ver agenda de visitas\n" +
		"2️⃣ Documentar visita\n\n" +
		"Responda com o número da opção desejada."

	// ScheduleMessage stands in for the schedule until an agenda source exists.
	ScheduleMessage = "📅 A consulta de agenda ainda não está disponível. Em breve você poderá ver suas visitas por aqui."

	// InvalidOptionMessage is sent for unknown menu choices.
	InvalidOptionMessage = "Opção inválida. Responda *1* para ver a agenda ou *2* para documentar uma visita."

	// CollectingMessage explains evidence collection mode.
	CollectingMessage = "📝 *Modo de documentação da visita*\n\n" +
		"Envie áudios, fotos, documentos ou textos sobre a visita.\n" +
		"Quando terminar, envie *0* ou *sair* para gerar o relatório."

	// ReceivedMessage acknowledges a captured note or artifact.
	ReceivedMessage = "✔️ Recebido."

	// StoreFailedMessage is sent when an artifact could not be saved.
	StoreFailedMessage = "⚠️ Não foi possível salvar este arquivo. Tente enviá-lo novamente."

	// ProcessingMessage is sent right before the hand-off starts.
	ProcessingMessage = "⏳ Processando os dados da visita, aguarde..."

	// NothingCollectedMessage is sent when the session is finalized empty.
	NothingCollectedMessage = "Nenhum dado foi enviado nesta visita. Escolha *2* no menu para documentar novamente."

	// ExtractionFailedPrefix precedes the backend's own error description.
	ExtractionFailedPrefix = "❌ Não foi possível gerar o relatório: "

	// TransportFailedMessage is sent when the extraction service is unreachable.
	TransportFailedMessage = "❌ O serviço de processamento não respondeu. Os dados desta visita foram descartados; escolha *2* no menu para tentar novamente."
)
