package room

// words is the public word list room ids are drawn from.
var words = []string{
	"grate", "label", "load", "tooth", "cold", "beneficial", "plausible", "boy", "steam",
	"lackadaisical", "decorous", "coach", "battle", "awake", "uppity", "thundering", "supreme",
	"back", "hop", "cellar", "suspend", "jittery", "scrape", "bloody", "design", "plug", "dynamic",
	"easy", "noise", "unfasten", "spare", "immense", "undesirable", "jumpy", "onerous", "birth",
	"pack", "heat", "blood", "flashy", "lace", "habitual", "uttermost", "pies", "challenge", "park",
	"swanky", "office", "x-ray", "table", "rotten", "walk", "historical", "juicy", "burly",
	"precious", "internal", "friends", "building", "bake", "turn", "yell", "carry", "wise", "rely",
	"aback", "nut", "helpless", "shiny", "country", "field", "extra-small", "difficult", "sail",
	"snatch", "deep", "air", "mean", "bouncy", "defective", "five", "neat", "son", "foolish", "hook",
	"childlike", "educate", "oven", "obsequious", "best", "sweltering", "responsible", "digestion",
	"limping", "deeply", "sordid", "riddle", "borrow", "alike", "clap", "cable", "entertaining",
	"position", "insurance", "husky", "existence", "left", "boat", "art", "lewd", "vigorous", "thank",
	"sore", "ripe", "paddle", "chop", "nasty", "invention", "scatter", "contain", "kettle", "basket",
	"soda", "near", "hose", "tiger", "miniature", "save", "relax", "adhesive", "same", "laugh",
	"minute", "twist", "hate", "acceptable", "unique", "rustic", "craven", "decorate", "pets",
	"handsome", "science", "worm", "capable", "strong", "amazing", "van", "imminent", "versed",
	"careful", "clever", "decide", "frightening", "jagged", "arm", "collar", "tired", "scissors",
	"front", "airplane", "cry", "trace", "fail", "healthy", "willing", "scent", "beautiful",
	"bewildered", "brawny", "reproduce", "jog", "overjoyed", "team", "necessary", "aggressive",
	"spoon", "sedate", "approve", "simple", "ghost", "real", "shock", "talk", "interrupt",
	"comfortable", "cheer", "cute", "rabbits", "slippery", "prose", "arrive", "crazy", "trousers",
	"inform", "free", "noisy", "flame", "frighten", "pushy", "earn", "self", "rush", "snobbish",
	"trap", "oval", "circle", "macabre", "watery", "quack", "military", "general", "typical",
	"vanish", "purring", "shape", "statuesque", "trite", "tramp", "hurried", "wholesale", "grouchy",
	"scrub", "bashful", "terrible", "communicate", "mailbox", "jump", "nostalgic", "hilarious",
	"switch", "truculent", "pocket", "pet", "rabid", "amuck", "divide", "songs", "note", "fool",
	"steadfast", "colossal", "irritate", "dime", "good", "little", "violent", "deer", "zoom", "slow",
	"tested", "enthusiastic", "hallowed", "rough", "guide", "chunky",
}
