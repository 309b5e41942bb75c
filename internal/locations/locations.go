// Package locations содержит справочник штатов Бразилии и городов, доступных в каталоге.
package locations

import "strings"

// State описывает федеративную единицу.
type State struct {
	Name string `json:"name"`
	Abbr string `json:"abbr"`
}

var states = []State{
	{Name: "Acre", Abbr: "AC"},
	{Name: "Alagoas", Abbr: "AL"},
	{Name: "Amapá", Abbr: "AP"},
	{Name: "Amazonas", Abbr: "AM"},
	{Name: "Bahia", Abbr: "BA"},
	{Name: "Ceará", Abbr: "CE"},
	{Name: "Distrito Federal", Abbr: "DF"},
	{Name: "Espírito Santo", Abbr: "ES"},
	{Name: "Goiás", Abbr: "GO"},
	{Name: "Maranhão", Abbr: "MA"},
	{Name: "Mato Grosso", Abbr: "MT"},
	{Name: "Mato Grosso do Sul", Abbr: "MS"},
	{Name: "Minas Gerais", Abbr: "MG"},
	{Name: "Pará", Abbr: "PA"},
	{Name: "Paraíba", Abbr: "PB"},
	{Name: "Paraná", Abbr: "PR"},
	{Name: "Pernambuco", Abbr: "PE"},
	{Name: "Piauí", Abbr: "PI"},
	{Name: "Rio de Janeiro", Abbr: "RJ"},
	{Name: "Rio Grande do Norte", Abbr: "RN"},
	{Name: "Rio Grande do Sul", Abbr: "RS"},
	{Name: "Rondônia", Abbr: "RO"},
	{Name: "Roraima", Abbr: "RR"},
	{Name: "Santa Catarina", Abbr: "SC"},
	{Name: "São Paulo", Abbr: "SP"},
	{Name: "Sergipe", Abbr: "SE"},
	{Name: "Tocantins", Abbr: "TO"},
}

var citiesByState = map[string][]string{
	"AC": {"Rio Branco", "Cruzeiro do Sul", "Sena Madureira", "Tarauacá", "Feijó"},
	"AL": {"Maceió", "Arapiraca", "Rio Largo", "Palmeira dos Índios", "Penedo"},
	"AP": {"Macapá", "Santana", "Laranjal do Jari", "Oiapoque", "Mazagão"},
	"AM": {"Manaus", "Parintins", "Itacoatiara", "Manacapuru", "Coari"},
	"BA": {"Salvador", "Feira de Santana", "Vitória da Conquista", "Camaçari", "Itabuna"},
	"CE": {"Fortaleza", "Caucaia", "Juazeiro do Norte", "Maracanaú", "Sobral"},
	"DF": {"Brasília", "Ceilândia", "Taguatinga", "Samambaia", "Plano Piloto"},
	"ES": {"Vitória", "Vila Velha", "Serra", "Cariacica", "Linhares"},
	"GO": {"Goiânia", "Aparecida de Goiânia", "Anápolis", "Rio Verde", "Luziânia"},
	"MA": {"São Luís", "Imperatriz", "Timon", "Caxias", "Codó"},
	"MT": {"Cuiabá", "Várzea Grande", "Rondonópolis", "Sinop", "Tangará da Serra"},
	"MS": {"Campo Grande", "Dourados", "Três Lagoas", "Corumbá", "Ponta Porã"},
	"MG": {"Belo Horizonte", "Uberlândia", "Contagem", "Juiz de Fora", "Betim"},
	"PA": {"Belém", "Ananindeua", "Santarém", "Marabá", "Castanhal"},
	"PB": {"João Pessoa", "Campina Grande", "Santa Rita", "Patos", "Bayeux"},
	"PR": {"Curitiba", "Londrina", "Maringá", "Ponta Grossa", "Cascavel"},
	"PE": {"Recife", "Jaboatão dos Guararapes", "Olinda", "Caruaru", "Petrolina"},
	"PI": {"Teresina", "Parnaíba", "Picos", "Piripiri", "Floriano"},
	"RJ": {"Rio de Janeiro", "São Gonçalo", "Duque de Caxias", "Nova Iguaçu", "Niterói"},
	"RN": {"Natal", "Mossoró", "Parnamirim", "São Gonçalo do Amarante", "Macaíba"},
	"RS": {"Porto Alegre", "Caxias do Sul", "Pelotas", "Canoas", "Santa Maria"},
	"RO": {"Porto Velho", "Ji-Paraná", "Ariquemes", "Vilhena", "Cacoal"},
	"RR": {"Boa Vista", "Caracaraí", "Rorainópolis", "Alto Alegre", "Mucajaí"},
	"SC": {"Florianópolis", "Joinville", "Blumenau", "São José", "Chapecó"},
	"SP": {"São Paulo", "Guarulhos", "Campinas", "São Bernardo do Campo", "Santo André"},
	"SE": {"Aracaju", "Nossa Senhora do Socorro", "Lagarto", "Itabaiana", "São Cristóvão"},
	"TO": {"Palmas", "Araguaína", "Gurupi", "Porto Nacional", "Paraíso do Tocantins"},
}

// States возвращает копию списка штатов в алфавитном порядке.
func States() []State {
	out := make([]State, len(states))
	copy(out, states)
	return out
}

// StateByName ищет штат по полному названию.
func StateByName(name string) (State, bool) {
	name = strings.TrimSpace(name)
	for _, s := range states {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return State{}, false
}

// StateByAbbr ищет штат по аббревиатуре.
func StateByAbbr(abbr string) (State, bool) {
	abbr = strings.ToUpper(strings.TrimSpace(abbr))
	for _, s := range states {
		if s.Abbr == abbr {
			return s, true
		}
	}
	return State{}, false
}

// Cities возвращает города штата по аббревиатуре.
func Cities(abbr string) []string {
	list := citiesByState[strings.ToUpper(strings.TrimSpace(abbr))]
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// CityName возвращает написание города из справочника для штата с указанным названием.
func CityName(stateName, city string) (string, bool) {
	s, ok := StateByName(stateName)
	if !ok {
		return "", false
	}
	city = strings.TrimSpace(city)
	for _, c := range citiesByState[s.Abbr] {
		if strings.EqualFold(c, city) {
			return c, true
		}
	}
	return "", false
}

// IsKnownCity сообщает, что город есть в справочнике для штата с указанным названием.
func IsKnownCity(stateName, city string) bool {
	_, ok := CityName(stateName, city)
	return ok
}
