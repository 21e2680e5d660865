package payments

// Bank is a PSE participant a payer can be redirected to
type Bank struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Banks is the simulated PSE directory
var Banks = []Bank{
	{Code: "1001", Name: "Bancolombia"},
	{Code: "1002", Name: "Banco de Bogota"},
	{Code: "1003", Name: "Davivienda"},
	{Code: "1004", Name: "BBVA"},
}

// LookupBank finds a bank by code
func LookupBank(code string) (Bank, bool) {
	for _, b := range Banks {
		if b.Code == code {
			return b, true
		}
	}
	return Bank{}, false
}
