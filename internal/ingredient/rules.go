package ingredient

// DefaultRules is the built-in alias table. Order matters: specific cuts come
// before the generic meat names they start with.
var DefaultRules = []Rule{
	// chicken
	{Pattern: `鶏むね|鶏胸|鶏ムネ|とりむね|鳥むね`, Canonical: "鶏むね肉"},
	{Pattern: `鶏もも|鶏モモ|鶏腿|とりもも|鳥もも`, Canonical: "鶏もも肉"},
	{Pattern: `鶏ささみ|ささみ|ササミ|ささ身`, Canonical: "ささみ"},
	{Pattern: `鶏ひき|鶏挽き|鶏ミンチ`, Canonical: "鶏ひき肉"},
	{Pattern: `鶏肉|とり肉|鳥肉|トリ肉|チキン`, Canonical: "鶏もも肉"},

	// pork and beef
	{Pattern: `豚こま|豚小間|豚コマ`, Canonical: "豚こま"},
	{Pattern: `豚バラ|豚ばら|豚三枚肉`, Canonical: "豚バラ肉"},
	{Pattern: `豚ひき|豚挽き|豚ミンチ`, Canonical: "豚ひき肉"},
	{Pattern: `合いびき|合挽き|合い挽き|あいびき`, Canonical: "合いびき肉"},
	{Pattern: `豚肉|ぶた肉|ポーク`, Canonical: "豚肉"},
	{Pattern: `牛こま|牛小間|牛コマ|牛切り落とし`, Canonical: "牛こま"},
	{Pattern: `牛肉|ビーフ`, Canonical: "牛肉"},

	// alliums
	{Pattern: `長ねぎ|長ネギ|白ねぎ|白ネギ|長葱|白葱`, Canonical: "長ねぎ"},
	{Pattern: `小ねぎ|小ネギ|青ねぎ|青ネギ|万能ねぎ|細ねぎ`, Canonical: "小ねぎ"},
	{Pattern: `玉ねぎ|玉ネギ|たまねぎ|タマネギ|玉葱|オニオン`, Canonical: "玉ねぎ"},
	{Pattern: `ねぎ|ネギ|葱`, Canonical: "長ねぎ"},

	// vegetables
	{Pattern: `人参|にんじん|ニンジン|キャロット`, Canonical: "にんじん"},
	{Pattern: `じゃがいも|ジャガイモ|じゃが芋|馬鈴薯`, Canonical: "じゃがいも"},
	{Pattern: `キャベツ|きゃべつ`, Canonical: "キャベツ"},
	{Pattern: `大根|だいこん|ダイコン`, Canonical: "大根"},
	{Pattern: `茄子|なすび|なす|ナス`, Canonical: "なす"},
	{Pattern: `ピーマン`, Canonical: "ピーマン"},
	{Pattern: `ほうれん草|ほうれんそう|ホウレンソウ`, Canonical: "ほうれん草"},
	{Pattern: `ブロッコリー`, Canonical: "ブロッコリー"},
	{Pattern: `ミニトマト|プチトマト`, Canonical: "ミニトマト"},
	{Pattern: `もやし|モヤシ`, Canonical: "もやし"},
	{Pattern: `白菜|はくさい|ハクサイ`, Canonical: "白菜"},
	{Pattern: `蓮根|れんこん|レンコン`, Canonical: "れんこん"},
	{Pattern: `牛蒡|ごぼう|ゴボウ`, Canonical: "ごぼう"},
	{Pattern: `南瓜|かぼちゃ|カボチャ`, Canonical: "かぼちゃ"},
	{Pattern: `胡瓜|きゅうり|キュウリ`, Canonical: "きゅうり"},
	{Pattern: `しめじ|シメジ`, Canonical: "しめじ"},
	{Pattern: `椎茸|しいたけ|シイタケ`, Canonical: "しいたけ"},
	{Pattern: `えのき|エノキ`, Canonical: "えのき"},

	// eggs, soy, fish
	{Pattern: `卵|玉子|たまご|タマゴ`, Canonical: "卵"},
	{Pattern: `絹ごし豆腐|絹豆腐|木綿豆腐|豆腐|とうふ`, Canonical: "豆腐"},
	{Pattern: `鮭|しゃけ|シャケ|サーモン`, Canonical: "鮭"},
	{Pattern: `鯖|さば|サバ`, Canonical: "さば"},
	{Pattern: `むきえび|むきエビ|海老|えび|エビ`, Canonical: "えび"},
	{Pattern: `シーチキン|ツナ`, Canonical: "ツナ"},
}
