package voice

import "testing"

func TestConvertNumberWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"douze", "12"},
		{"vingt et un", "21"},
		{"vingt-et-un", "21"},
		{"trente-quatre", "34"},
		{"soixante et onze", "71"},
		{"soixante-dix-huit", "78"},
		{"quatre-vingts", "80"},
		{"quatre-vingt-dix-neuf", "99"},
		{"quatre vingt dix", "90"},
		{"deux cent cinquante", "250"},
		{"cent deux", "102"},
		{"mille deux cents", "1200"},
		{"trois mille cinq cents", "3500"},
		{"zéro six douze trente-quatre", "0 6 12 34"},
		{"dix pour cent", "10 %"},
		{"20 pour cent", "20 %"},
		{"payé pour cent euros", "payé pour 100 euros"},
		{"un devis", "un devis"},
		{"une heure", "1 heure"},
		{"un chauffe-eau neuf", "un chauffe-eau neuf"},
		{"neuf euros", "9 euros"},
		{"deux trois", "2 3"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := convertNumberWords(tt.in); got != tt.want {
				t.Fatalf("convertNumberWords(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Nouveau   DEVIS  ", "nouveau devis"},
		{"Dupont, remplacement.", "dupont remplacement"},
		{"12,50 €", "12,50 €"},
		{"à 14:30", "à 14h30"},
		{"l’unité", "l'unité"},
		{"jean arobase gmail point com", "jean@gmail.com"},
		{"jean point martin arobase orange point fr", "jean.martin@orange.fr"},
		{"tva cinq virgule cinq", "tva 5,5"},
		{"jean tiret pierre", "jean-pierre"},
	}
	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Fatalf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
