package voice

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/louisbranch/tradebook/internal/money"
)

func ptr[T any](v T) *T { return &v }

// monday is 2026-03-02 10:00 UTC.
var monday = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		transcript string
		now        time.Time
		want       Command
	}{
		{
			name:       "quote for client with description",
			transcript: "Nouveau devis pour monsieur Dupont, remplacement du chauffe-eau",
			want: Command{
				Intent:      IntentCreateQuote,
				Client:      "Monsieur Dupont",
				Description: "Remplacement du chauffe-eau",
			},
		},
		{
			name:       "line with quantity and spoken cents",
			transcript: "Ajoute 3 mètres de tuyau cuivre à 12 euros 50",
			want: Command{
				Intent:      IntentAddLine,
				Quantity:    ptr(money.Units(3)),
				Unit:        UnitMeter,
				UnitPrice:   ptr(money.Cents(1250)),
				Description: "Tuyau cuivre",
			},
		},
		{
			name:       "line with unit price per unit and vat",
			transcript: "Ajoute pose de carrelage 12 m2 à 45 euros le mètre carré TVA 10 %",
			want: Command{
				Intent:      IntentAddLine,
				Quantity:    ptr(money.Units(12)),
				Unit:        UnitSquareMeter,
				UnitPrice:   ptr(money.Cents(4500)),
				VATRate:     ptr(money.VATIntermediate),
				Description: "Pose de carrelage",
			},
		},
		{
			name:       "number words and reduced vat",
			transcript: "ajoute deux heures de main d'oeuvre à quarante-cinq euros avec une TVA à cinq virgule cinq",
			want: Command{
				Intent:      IntentAddLine,
				Quantity:    ptr(money.Units(2)),
				Unit:        UnitHour,
				UnitPrice:   ptr(money.Cents(4500)),
				VATRate:     ptr(money.VATReduced),
				Description: "Main d'oeuvre",
			},
		},
		{
			name:       "trailing digits after euros are a quantity",
			transcript: "12 euros 3 mètres de gaine",
			want: Command{
				Intent:      IntentUnknown,
				Quantity:    ptr(money.Units(3)),
				Unit:        UnitMeter,
				UnitPrice:   ptr(money.Cents(1200)),
				Description: "Gaine",
			},
		},
		{
			name:       "appointment with date and time",
			transcript: "Rendez-vous chez madame Leroy demain à 14h30",
			want: Command{
				Intent: IntentSchedule,
				Client: "Madame Leroy",
				Date:   day(2026, 3, 3),
				Time:   "14:30",
			},
		},
		{
			name:       "appointment hours are a time of day",
			transcript: "rdv le douze mars à neuf heures",
			now:        time.Date(2026, 3, 20, 8, 0, 0, 0, time.UTC),
			want: Command{
				Intent: IntentSchedule,
				Date:   day(2027, 3, 12),
				Time:   "09:00",
			},
		},
		{
			name:       "weekday and half hour",
			transcript: "planifier une intervention vendredi vers 8 heures et demie chez client Martin",
			want: Command{
				Intent: IntentSchedule,
				Client: "Martin",
				Date:   day(2026, 3, 6),
				Time:   "08:30",
			},
		},
		{
			name:       "next weekday and noon",
			transcript: "rendez-vous lundi prochain à midi",
			want: Command{
				Intent: IntentSchedule,
				Date:   day(2026, 3, 9),
				Time:   "12:00",
			},
		},
		{
			name:       "relative days",
			transcript: "programme la visite dans 3 jours",
			want: Command{
				Intent:      IntentSchedule,
				Date:        day(2026, 3, 5),
				Description: "Visite",
			},
		},
		{
			name:       "numeric date",
			transcript: "rdv le 15/04",
			want: Command{
				Intent: IntentSchedule,
				Date:   day(2026, 4, 15),
			},
		},
		{
			name:       "client with spoken phone and email",
			transcript: "Créer un client Jean Martin, téléphone zéro six douze trente-quatre cinquante-six soixante-dix-huit, email jean point martin arobase gmail point com",
			want: Command{
				Intent: IntentCreateClient,
				Client: "Jean Martin",
				Phone:  "06 12 34 56 78",
				Email:  "jean.martin@gmail.com",
			},
		},
		{
			name:       "international phone",
			transcript: "nouveau client Bernard +33 6 11 22 33 44",
			want: Command{
				Intent: IntentCreateClient,
				Client: "Bernard",
				Phone:  "06 11 22 33 44",
			},
		},
		{
			name:       "invoice for company",
			transcript: "Facture pour la société Batiplus",
			want: Command{
				Intent: IntentCreateInvoice,
				Client: "Société Batiplus",
			},
		},
		{
			name:       "flat rate",
			transcript: "devis forfait déplacement 35 €",
			want: Command{
				Intent:      IntentCreateQuote,
				Quantity:    ptr(money.Units(1)),
				Unit:        UnitFlatRate,
				UnitPrice:   ptr(money.Cents(3500)),
				Description: "Déplacement",
			},
		},
		{
			name:       "nothing recognized keeps raw text",
			transcript: "  Bonjour, ça va ?  ",
			want: Command{
				Intent:      IntentUnknown,
				Description: "Bonjour, ça va ?",
			},
		},
		{
			name:       "empty transcript",
			transcript: "",
			want:       Command{Intent: IntentUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			now := tt.now
			if now.IsZero() {
				now = monday
			}
			got := Parse(tt.transcript, now)
			if got.Raw != tt.transcript {
				t.Fatalf("raw = %q, want %q", got.Raw, tt.transcript)
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.IgnoreFields(Command{}, "Raw", "Matched")); diff != "" {
				t.Fatalf("command mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRecordsMatchedRulesInOrder(t *testing.T) {
	got := Parse("nouveau devis pour madame Roux 2 heures à 50 euros", monday)
	want := []string{"intent", "price", "quantity", "client"}
	if diff := cmp.Diff(want, got.Matched); diff != "" {
		t.Fatalf("matched mismatch (-want +got):\n%s", diff)
	}
}

func TestCommandAt(t *testing.T) {
	cmd := Parse("rendez-vous demain à 9h15", monday)
	at, ok := cmd.At()
	if !ok {
		t.Fatal("expected a date")
	}
	want := time.Date(2026, 3, 3, 9, 15, 0, 0, time.UTC)
	if !at.Equal(want) {
		t.Fatalf("At() = %v, want %v", at, want)
	}
	if _, ok := (Command{}).At(); ok {
		t.Fatal("expected no date")
	}
}

func TestCustomRules(t *testing.T) {
	parser := NewParser(Rule{Name: "email", Apply: applyEmail})
	got := parser.Parse("contact jean@exemple.fr merci", monday)
	if got.Email != "jean@exemple.fr" {
		t.Fatalf("email = %q", got.Email)
	}
	if got.Description != "Contact" {
		t.Fatalf("description = %q", got.Description)
	}
}

func TestCalendarDateRejectsInvalidDays(t *testing.T) {
	today := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	if _, ok := calendarDate(today, 0, time.February, 30); ok {
		t.Fatal("expected 30 February to be rejected")
	}
	got, ok := calendarDate(today, 0, time.January, 5)
	if !ok || got.Year() != 2027 {
		t.Fatalf("past date = %v, %v", got, ok)
	}
}
