package scraper

import (
	"reflect"
	"strings"
	"testing"
)

const twPokemonFixture = `<!doctype html>
<html><body>
<h1 class="pageHeader cardDetail"><span class="evolveMarker">1進化</span>皮卡丘EX</h1>
<section class="imageColumn"><img src="https://img.example/cards/12345.png"></section>
<p class="mainInfomation">
	HP <span class="number">120</span>
	<span class="type">雷</span>
	<img src="/images/energy/lightning.png">
</p>
<div class="skillInformation">
	<h3 class="commonHeader">特性</h3>
	<div class="skill">
		<span class="skillName">靜電</span>
		<p class="skillEffect">只要這隻寶可夢在場上，對手就無法使用支援者卡。</p>
	</div>
</div>
<div class="skillInformation">
	<h3 class="commonHeader">招式</h3>
	<div class="skill">
		<span class="skillCost">
			<img src="/images/energy/lightning.png">
			<img src="/images/energy/colorless.png">
		</span>
		<span class="skillName">十萬伏特</span>
		<span class="skillDamage">90</span>
		<p class="skillEffect">擲硬幣1次。  若為反面，  則這隻寶可夢也受到30點傷害。</p>
	</div>
	<div class="skill">
		<span class="skillName">電光一閃</span>
		<span class="skillDamage">30</span>
	</div>
</div>
<div class="subInformation"><table><tr>
	<td class="weakpoint"><img src="/images/energy/fighting.png">×2</td>
	<td class="resist">--</td>
	<td class="escape">
		<img src="/images/energy/colorless.png">
		<img src="/images/energy/colorless.png">
	</td>
</tr></table></div>
<section class="expansionColumn">
	<span class="expansionSymbol"><img src="/images/expansions/sv8.png"></span>
	<span class="alpha">H</span>
	<span class="collectorNumber">057/106</span>
</section>
<section class="expansionLinkColumn">
	<a href="/tw/card-search/list/?expansionCodes=SV8">超電火花</a>
</section>
<div class="illustrator">繪師：<a href="/tw/card-search/list/?illustrator=5">Ken Sugimori</a></div>
<div class="extraInformation">
	<h3>鼠寶可夢 No.025</h3>
	<p class="size">身高 <span class="value">0.4 m</span> 體重 <span class="value">6.0 kg</span></p>
	<p class="discription">居住在森林裡的寶可夢。臉頰上的囊袋可以儲存電力。</p>
</div>
</body></html>`

func TestParseCardDetail_Pokemon(t *testing.T) {
	src := testSource("https://example.invalid")
	card, err := ParseCardDetail(src, 12345, twPokemonFixture)
	if err != nil {
		t.Fatalf("ParseCardDetail: %v", err)
	}

	if card.CardID != 12345 {
		t.Errorf("CardID = %d", card.CardID)
	}
	if card.Name != "皮卡丘EX" {
		t.Errorf("Name = %q, want 皮卡丘EX", card.Name)
	}
	if card.EvolveMarker == nil || *card.EvolveMarker != "1進化" {
		t.Errorf("EvolveMarker = %v, want 1進化", card.EvolveMarker)
	}
	if card.CardType != "pokemon" {
		t.Errorf("CardType = %q, want pokemon", card.CardType)
	}
	if card.HP == nil || *card.HP != 120 {
		t.Errorf("HP = %v, want 120", card.HP)
	}
	if card.Element == nil || *card.Element != "雷" {
		t.Errorf("Element = %v, want 雷", card.Element)
	}
	if card.ElementCode == nil || *card.ElementCode != "lightning" {
		t.Errorf("ElementCode = %v, want lightning", card.ElementCode)
	}
	if card.ImageURL == nil || *card.ImageURL != "https://img.example/cards/12345.png" {
		t.Errorf("ImageURL = %v", card.ImageURL)
	}
	if card.SourceURL != src.DetailURL(12345) {
		t.Errorf("SourceURL = %q", card.SourceURL)
	}
	if card.FetchedAt == "" {
		t.Error("FetchedAt is empty")
	}

	if card.WeaknessCode == nil || *card.WeaknessCode != "fighting" {
		t.Errorf("WeaknessCode = %v, want fighting", card.WeaknessCode)
	}
	if card.WeaknessValue == nil || *card.WeaknessValue != "×2" {
		t.Errorf("WeaknessValue = %v, want ×2", card.WeaknessValue)
	}
	// "--" is the no-resistance sentinel and maps to nil.
	if card.ResistanceCode != nil || card.ResistanceValue != nil {
		t.Errorf("Resistance = %v/%v, want nil/nil", card.ResistanceCode, card.ResistanceValue)
	}
	if card.RetreatCost == nil || *card.RetreatCost != 2 {
		t.Errorf("RetreatCost = %v, want 2", card.RetreatCost)
	}

	if card.RegulationMark == nil || *card.RegulationMark != "H" {
		t.Errorf("RegulationMark = %v, want H", card.RegulationMark)
	}
	if card.CollectorNumber == nil || *card.CollectorNumber != "057/106" {
		t.Errorf("CollectorNumber = %v, want 057/106", card.CollectorNumber)
	}
	if card.ExpansionCode == nil || *card.ExpansionCode != "SV8" {
		t.Errorf("ExpansionCode = %v, want SV8", card.ExpansionCode)
	}
	if card.ExpansionName == nil || *card.ExpansionName != "超電火花" {
		t.Errorf("ExpansionName = %v, want 超電火花", card.ExpansionName)
	}
	if card.ExpansionSymbolURL == nil || *card.ExpansionSymbolURL != "/images/expansions/sv8.png" {
		t.Errorf("ExpansionSymbolURL = %v", card.ExpansionSymbolURL)
	}
	if card.Illustrator == nil || *card.Illustrator != "Ken Sugimori" {
		t.Errorf("Illustrator = %v, want Ken Sugimori", card.Illustrator)
	}

	if card.PokedexNo == nil || *card.PokedexNo != 25 {
		t.Errorf("PokedexNo = %v, want 25", card.PokedexNo)
	}
	if card.HeightM == nil || *card.HeightM != 0.4 {
		t.Errorf("HeightM = %v, want 0.4", card.HeightM)
	}
	if card.WeightKg == nil || *card.WeightKg != 6.0 {
		t.Errorf("WeightKg = %v, want 6.0", card.WeightKg)
	}
	if card.Description == nil || !strings.Contains(*card.Description, "囊袋") {
		t.Errorf("Description = %v", card.Description)
	}
}

func TestParseCardDetail_Skills(t *testing.T) {
	src := testSource("https://example.invalid")
	card, err := ParseCardDetail(src, 12345, twPokemonFixture)
	if err != nil {
		t.Fatalf("ParseCardDetail: %v", err)
	}
	if len(card.Skills) != 3 {
		t.Fatalf("len(Skills) = %d, want 3", len(card.Skills))
	}

	// Idx is dense and document-ordered across both sections.
	for i, s := range card.Skills {
		if s.Idx != i {
			t.Errorf("Skills[%d].Idx = %d", i, s.Idx)
		}
	}

	ability := card.Skills[0]
	if ability.Kind == nil || *ability.Kind != "特性" {
		t.Errorf("ability Kind = %v", ability.Kind)
	}
	if ability.Name == nil || *ability.Name != "靜電" {
		t.Errorf("ability Name = %v", ability.Name)
	}
	if len(ability.Cost) != 0 {
		t.Errorf("ability Cost = %v, want empty", ability.Cost)
	}
	if ability.Damage != nil {
		t.Errorf("ability Damage = %v, want nil", ability.Damage)
	}
	if ability.Effect == nil || !strings.Contains(*ability.Effect, "支援者卡") {
		t.Errorf("ability Effect = %v", ability.Effect)
	}

	attack := card.Skills[1]
	if attack.Kind == nil || *attack.Kind != "招式" {
		t.Errorf("attack Kind = %v", attack.Kind)
	}
	if attack.Name == nil || *attack.Name != "十萬伏特" {
		t.Errorf("attack Name = %v", attack.Name)
	}
	if want := []string{"lightning", "colorless"}; !reflect.DeepEqual(attack.Cost, want) {
		t.Errorf("attack Cost = %v, want %v", attack.Cost, want)
	}
	if attack.Damage == nil || *attack.Damage != "90" {
		t.Errorf("attack Damage = %v, want 90", attack.Damage)
	}
	if attack.EffectTextNorm == nil || strings.Contains(*attack.EffectTextNorm, "  ") {
		t.Errorf("EffectTextNorm = %v, want space runs collapsed", attack.EffectTextNorm)
	}

	plain := card.Skills[2]
	if plain.Name == nil || *plain.Name != "電光一閃" {
		t.Errorf("plain Name = %v", plain.Name)
	}
	if plain.Effect != nil {
		t.Errorf("plain Effect = %v, want nil", plain.Effect)
	}
	if plain.EffectTextNorm != nil {
		t.Errorf("plain EffectTextNorm = %v, want nil", plain.EffectTextNorm)
	}
}

func TestParseCardDetail_Trainer(t *testing.T) {
	body := `<html><body>
		<h1 class="pageHeader cardDetail">博士的研究</h1>
		<div class="skillInformation">
			<h3 class="commonHeader">支援者</h3>
			<div class="skill"><p class="skillEffect">將自己的手牌全部放回牌庫，然後抽7張卡。</p></div>
		</div>
	</body></html>`
	card, err := ParseCardDetail(testSource("https://example.invalid"), 1, body)
	if err != nil {
		t.Fatalf("ParseCardDetail: %v", err)
	}
	if card.CardType != "trainer" {
		t.Errorf("CardType = %q, want trainer", card.CardType)
	}
	if card.HP != nil {
		t.Errorf("HP = %v, want nil for trainer", card.HP)
	}
}

func TestParseCardDetail_Energy(t *testing.T) {
	body := `<html><body>
		<h1 class="pageHeader cardDetail">基本雷能量</h1>
		<div class="skillInformation">
			<h3 class="commonHeader">基本能量</h3>
			<div class="skill"><p class="skillEffect">提供1個雷能量。</p></div>
		</div>
	</body></html>`
	card, err := ParseCardDetail(testSource("https://example.invalid"), 2, body)
	if err != nil {
		t.Fatalf("ParseCardDetail: %v", err)
	}
	if card.CardType != "energy" {
		t.Errorf("CardType = %q, want energy", card.CardType)
	}
}

func TestParseCardDetail_UnknownType(t *testing.T) {
	body := `<html><body><h1 class="pageHeader cardDetail">神秘卡</h1></body></html>`
	card, err := ParseCardDetail(testSource("https://example.invalid"), 3, body)
	if err != nil {
		t.Fatalf("ParseCardDetail: %v", err)
	}
	if card.CardType != "unknown" {
		t.Errorf("CardType = %q, want unknown", card.CardType)
	}
	if len(card.Skills) != 0 {
		t.Errorf("Skills = %v, want none", card.Skills)
	}
}

func TestParseCardDetail_NoHeading(t *testing.T) {
	if _, err := ParseCardDetail(testSource("https://example.invalid"), 4, "<html><body></body></html>"); err == nil {
		t.Fatal("page without heading should fail to parse")
	}
}

func TestParseCardDetail_EmptyName(t *testing.T) {
	body := `<html><body><h1 class="pageHeader cardDetail"><span class="evolveMarker">基本</span></h1></body></html>`
	if _, err := ParseCardDetail(testSource("https://example.invalid"), 5, body); err == nil {
		t.Fatal("heading with only an evolve marker should fail to parse")
	}
}
