package anonymize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var libraryCases = []struct {
	name string
	in   string
	want string
}{
	{"email", "Écrivez à jean.dupont@example.com demain", "Écrivez à [EMAIL] demain"},
	{"mobile phone", "Appelez le 06 12 34 56 78.", "Appelez le [TÉLÉPHONE]."},
	{"phone without separators", "Appelez le 0612345678.", "Appelez le [TÉLÉPHONE]."},
	{"international phone", "Tel: +33 6 12 34 56 78", "Tel: [TÉLÉPHONE]"},
	{"international phone with trunk", "Tel: +33 (0)6 12 34 56 78", "Tel: [TÉLÉPHONE]"},
	{"area code in parentheses", "Call (555) 123-4567 now", "Call [TÉLÉPHONE] now"},
	{"short reference is not a phone", "Réf 12345678 ici", "Réf 12345678 ici"},
	{"urls", "Voir https://example.com/page et www.example.org", "Voir [URL] et [URL]"},
	{"numeric date", "Le 12/03/2024 à 10h", "Le [DATE] à 10h"},
	{"iso date", "Livré le 2024-03-12.", "Livré le [DATE]."},
	{"month and year", "Lancement en mars 2024", "Lancement en [DATE]"},
	{"month and year capitalised", "Bilan Décembre 2023", "Bilan [DATE]"},
	{"amount in euros", "Budget de 1 500 € cette année", "Budget de [MONTANT] cette année"},
	{"amount in dirhams", "Payé 3000 dirhams", "Payé [MONTANT]"},
	{"amount with code", "Vente à 250 MAD pièce", "Vente à [MONTANT] pièce"},
	{"percentage", "Une hausse de 12,5 % en un an", "Une hausse de [POURCENTAGE] en un an"},
	{"postal code", "Code postal 75008 Paris", "Code postal [CODE POSTAL] [VILLE]"},
	{"siren", "SIREN 732829320 enregistré", "SIREN [SIRET/SIREN] enregistré"},
	{"siret", "SIRET 73282932000074 enregistré", "SIRET [SIRET/SIREN] enregistré"},
	{"street address", "Siège au 12 rue de la Paix, Paris", "Siège au [ADRESSE] [VILLE]"},
	{"street address with accent", "Dépôt au 4 allée des Pins.", "Dépôt au [ADRESSE]"},
	{"card", "Carte 4111 1111 1111 1111 expirée", "Carte [CARTE DE CRÉDIT] expirée"},
	{"card with dashes", "Carte 4111-1111-1111-1111 expirée", "Carte [CARTE DE CRÉDIT] expirée"},
	{"ipv4", "Serveur 192.168.10.20 en panne", "Serveur [ADRESSE IP] en panne"},
	{"ipv4 is not a date", "Hôte 10.10.10.10 actif", "Hôte [ADRESSE IP] actif"},
	{"national id", "NSS 1 85 05 78 006 084 36 fourni", "NSS [NUMÉRO DE SÉCURITÉ SOCIALE] fourni"},
	{"price range", "Prix entre 100 à 200 € selon volume", "Prix entre [FOURCHETTE PRIX] selon volume"},
	{"price range with dash", "Devis 15000 - 20000 € HT", "Devis [FOURCHETTE PRIX] HT"},
	{"brands", "Nous travaillons avec Coca-Cola et Nike.", "Nous travaillons avec [MARQUE] et [MARQUE]."},
	{"brand inside a word", "Nikeland et les pumas", "Nikeland et les pumas"},
	{"multi-word brand", "Gamme LAGO PLAISIR 2024", "Gamme [MARQUE] 2024"},
	{"cities", "Bureaux à Casablanca, El Jadida et Fès", "Bureaux à [VILLE], [VILLE] et [VILLE]"},
}

func TestLibraryRules(t *testing.T) {
	a := newTestAnonymizer(t, Unavailable)
	for _, tt := range libraryCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Anonymize(context.Background(), tt.in, nil))
		})
	}
}

func TestLibraryIsIdempotent(t *testing.T) {
	a := newTestAnonymizer(t, Unavailable)
	for _, tt := range libraryCases {
		t.Run(tt.name, func(t *testing.T) {
			once := a.Anonymize(context.Background(), tt.in, nil)
			twice, rep := a.AnonymizeWithReport(context.Background(), once, nil)
			assert.Equal(t, once, twice)
			assert.Zero(t, rep.Total())
		})
	}
}

func TestPlaceholdersMatchNoRule(t *testing.T) {
	for _, locale := range []string{"fr", "en"} {
		lib, err := LoadLibrary(locale)
		require.NoError(t, err)
		a := New(lib, Unavailable)
		for _, p := range lib.Placeholders() {
			assert.Equal(t, p, a.Anonymize(context.Background(), p, nil), "locale %s", locale)
		}
	}
}

func TestLoadLibraryOrder(t *testing.T) {
	lib, err := LoadLibrary("fr")
	require.NoError(t, err)

	var categories []string
	for _, r := range lib.Rules {
		categories = append(categories, r.Category)
	}
	assert.Equal(t, []string{
		"email", "phone", "url", "date", "date", "amount", "percent", "postal_code",
		"company_id", "address", "card", "ip_address", "national_id", "price_range",
	}, categories)

	require.Len(t, lib.Vocabularies, 2)
	assert.Equal(t, "brand", lib.Vocabularies[0].Category)
	assert.Equal(t, "city", lib.Vocabularies[1].Category)
	assert.Len(t, lib.Quotes, 3)
	assert.Len(t, lib.Entities, len(EntityLabels))
	assert.Equal(t, "[PERSONNE]", lib.Entities["PERSON"])
}

func TestLoadLibraryDefaultsToFrench(t *testing.T) {
	lib, err := LoadLibrary("")
	require.NoError(t, err)
	assert.Equal(t, "fr", lib.Locale)
}

func TestLoadLibraryUnknownLocale(t *testing.T) {
	_, err := LoadLibrary("xx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown locale")
}

func TestEnglishLocale(t *testing.T) {
	lib, err := LoadLibrary("en")
	require.NoError(t, err)
	a := New(lib, Unavailable)

	out := a.Anonymize(context.Background(),
		"Call 555-123-4567 before March 2025 about the 100 to 200 USD deal at 5 Avenue of the Americas, London.", nil)
	assert.Equal(t, "Call [PHONE] before [DATE] about the [PRICE RANGE] deal at [ADDRESS] [CITY].", out)
}

func TestLoadLibraryOverrides(t *testing.T) {
	override := []byte(`
placeholders:
  email: "<MAIL>"
entities:
  per: "[NOM]"
vocabularies:
  - category: brand
    terms: [ACME, nike]
`)
	lib, err := LoadLibrary("fr", override)
	require.NoError(t, err)
	a := New(lib, Static(fixedEntities(map[string]string{"Jean": "PERSON"})))

	assert.Equal(t, "[NOM] de [MARQUE]: <MAIL>", a.Anonymize(context.Background(), "Jean de Acme: a@b.io", nil))

	brands := lib.Vocabularies[0].Terms
	assert.Contains(t, brands, "ACME")
	assert.Len(t, brands, 30, "nike is already listed")
}

func TestLoadLibraryRejectsMatchingPlaceholder(t *testing.T) {
	_, err := LoadLibrary("fr", []byte(`placeholders: {phone: "[x@y.io]"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `rule "email"`)
}

func TestLoadLibraryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vocabularies:\n  - category: city\n    terms: [Tokyo]\n"), 0o600))

	lib, err := LoadLibraryFile("fr", path)
	require.NoError(t, err)
	assert.Contains(t, lib.Vocabularies[1].Terms, "Tokyo")

	_, err = LoadLibraryFile("fr", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestCategories(t *testing.T) {
	lib, err := LoadLibrary("fr")
	require.NoError(t, err)

	cats := lib.Categories()
	require.NotEmpty(t, cats)
	assert.Equal(t, Category{Kind: "entity", Category: "PERSON", Placeholder: "[PERSONNE]"}, cats[0])
	last := cats[len(cats)-1]
	assert.Equal(t, "quote", last.Kind)
	assert.Equal(t, "[CITATION UTILISATEUR]", last.Placeholder)
	for _, c := range cats {
		if c.Kind == "vocabulary" && c.Category == "city" {
			assert.Equal(t, 26, c.Terms)
		}
	}
}
