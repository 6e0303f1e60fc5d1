package bank

// Prompt is one catalog entry: the start of a search query, its real
// completion and plausible wrong completions.
type Prompt struct {
	Prefix  string   `json:"prefix" yaml:"prefix"`
	Correct string   `json:"correct" yaml:"correct"`
	Decoys  []string `json:"decoys" yaml:"decoys"`
}

// DefaultPrompts returns the built-in catalog in game order.
func DefaultPrompts() []Prompt {
	out := make([]Prompt, len(defaultPrompts))
	for i, p := range defaultPrompts {
		p.Decoys = append([]string(nil), p.Decoys...)
		out[i] = p
	}
	return out
}

var defaultPrompts = []Prompt{
	{
		Prefix:  "why is the moon",
		Correct: "following me when I drive",
		Decoys: []string{
			"turning red tonight",
			"so bright in daytime",
			"visible through clouds",
			"so close to my window",
		},
	},
	{
		Prefix:  "can you microwave",
		Correct: "grapes without them exploding",
		Decoys: []string{
			"aluminum for ten seconds",
			"ice so it melts faster",
			"a spoon to dry it",
			"bread to make it fluffy",
		},
	},
	{
		Prefix:  "why do cats",
		Correct: "stare at walls for no reason",
		Decoys: []string{
			"sleep with paws on their face",
			"knead blankets before bed",
			"hide in boxes they barely fit",
			"chirp at birds through windows",
		},
	},
	{
		Prefix:  "is it normal to",
		Correct: "hear your stomach growl in class",
		Decoys: []string{
			"forget why you walked into a room",
			"feel tired after a nap",
			"get songs stuck in your head",
			"yawn when someone else yawns",
		},
	},
	{
		Prefix:  "why does my phone",
		Correct: "die faster in the cold",
		Decoys: []string{
			"charge slower at night",
			"get hot when I text",
			"buzz when I open apps",
			"show the wrong time",
		},
	},
	{
		Prefix:  "how long does it take",
		Correct: "for pizza to cool down",
		Decoys: []string{
			"to boil a kettle",
			"for ice to melt",
			"to toast bread evenly",
			"to cook a baked potato",
		},
	},
	{
		Prefix:  "why is my dog",
		Correct: "afraid of the vacuum",
		Decoys: []string{
			"rolling in the grass",
			"tilting his head at me",
			"circling before lying down",
			"bringing me toys",
		},
	},
	{
		Prefix:  "what happens if you",
		Correct: "flush ice cubes down the toilet",
		Decoys: []string{
			"use hot water on a mirror",
			"run the dishwasher twice",
			"leave the fridge open",
			"put salt on an icy sidewalk",
		},
	},
	{
		Prefix:  "how do I",
		Correct: "get glitter out of carpet",
		Decoys: []string{
			"fold a fitted sheet",
			"remove sticker residue",
			"clean a cast iron pan",
			"stop shoes from squeaking",
		},
	},
	{
		Prefix:  "why does my toast",
		Correct: "always land butter side down",
		Decoys: []string{
			"burn on the edges first",
			"smell sweet after it pops",
			"take longer in winter",
			"get cold so quickly",
		},
	},
	{
		Prefix:  "can you",
		Correct: "teach a goldfish tricks",
		Decoys: []string{
			"train a hamster to fetch",
			"walk a cat on a leash",
			"teach a parrot to whisper",
			"teach a rabbit to hop hurdles",
		},
	},
	{
		Prefix:  "why does my alarm",
		Correct: "sound quieter in the morning",
		Decoys: []string{
			"go off five minutes early",
			"change tones by itself",
			"stop after one ring",
			"drain my battery",
		},
	},
	{
		Prefix:  "what is the best way",
		Correct: "to peel a boiled egg",
		Decoys: []string{
			"to cut a sandwich",
			"to sharpen a pencil",
			"to freeze bananas",
			"to warm up soup",
		},
	},
	{
		Prefix:  "why do my headphones",
		Correct: "tangle even when I don't touch them",
		Decoys: []string{
			"sound tinny on calls",
			"make my ears itch",
			"lose bass over time",
			"stop working in one ear",
		},
	},
	{
		Prefix:  "can you",
		Correct: "go to sleep faster by blinking",
		Decoys: []string{
			"drink water upside down",
			"sneeze with your eyes open",
			"breathe through your ears",
			"hiccup on command",
		},
	},
	{
		Prefix:  "why does my pizza box",
		Correct: "have a little table in it",
		Decoys: []string{
			"smell like cardboard",
			"get soggy on the bottom",
			"say hot and fresh",
			"come with extra sauce",
		},
	},
	{
		Prefix:  "how do I",
		Correct: "stop my glasses from fogging",
		Decoys: []string{
			"fix a squeaky door",
			"clean a keyboard",
			"remove a stripped screw",
			"get ink out of a shirt",
		},
	},
	{
		Prefix:  "why do I",
		Correct: "wake up one minute before my alarm",
		Decoys: []string{
			"dream about my old school",
			"forget names immediately",
			"need snacks at midnight",
			"yawn when I read",
		},
	},
	{
		Prefix:  "what does it mean if",
		Correct: "I keep forgetting passwords",
		Decoys: []string{
			"my phone keeps restarting",
			"the fridge keeps humming",
			"my Wi-Fi is slow",
			"my watch is late",
		},
	},
	{
		Prefix:  "why does my microwave",
		Correct: "spark when I heat soup",
		Decoys: []string{
			"smell funny after popcorn",
			"make my plate spin",
			"beep for too long",
			"take longer to warm up",
		},
	},
}
