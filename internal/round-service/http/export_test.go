package http

// StatusFor expõe o mapeamento de erros para os testes do pacote externo
func StatusFor(err error) int {
	status, _ := statusFor(err)
	return status
}
