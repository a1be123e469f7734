package conversation

const (
	welcomeFmt = "Welcome! You're now subscribed to the daily digest at %s (%s). " +
		"What would you like to do? (add source/remove source/change time/view sources)"

	addSourceUnresolvedText = "I couldn't work out which site you mean. Please send a valid URL or site name, e.g. https://techcrunch.com."
	addSourceConfirmFmt     = "Did you mean %s? Reply \"yes\" to add it."
	confirmMissingText      = "There is no source waiting for confirmation. Please tell me which source to add."
	confirmInvalidText      = "That doesn't look like a valid web address. Please send a URL starting with http:// or https://."
	sourceAlreadyPresentFmt = "You already have %s in your sources."
	sourceAddedFmt          = "Added %s to your sources. Add another one, or say \"done\" when you're finished."

	removeNotFoundFmt = "You don't have %s in your sources."
	removeMissingText = "Please tell me which source to remove."
	sourceRemovedFmt  = "Removed %s from your sources. Anything else?"

	timeInvalidText = "Please specify a valid time (e.g., 09:30)."
	timeChangedFmt  = "Changed delivery time to %s. Anything else?"

	timezoneInvalidText = "Invalid timezone. Please use format like 'America/New_York' or 'Europe/London'."
	timezoneSetFmt      = "Set timezone to %s. Anything else?"

	timeAndTimezoneInvalidText = "Please give both a valid time (e.g., 09:30) and a timezone (e.g., 'America/New_York') together."
	timeAndTimezoneSetFmt      = "Your digest will arrive at %s %s. Anything else?"

	viewDefaultsFmt = "You haven't added any sources yet, so the default sources are used. Delivery time: %s %s."
	viewSourcesFmt  = "Your current sources: %s. Delivery time: %s %s."

	doneText        = "All set! Your digest will arrive at your scheduled time."
	unsubscribeText = "You've been unsubscribed. Sorry to see you go!"
	helpText        = "I can help you: add source, remove source, change time, set timezone, view sources, or unsubscribe. What would you like to do?"
)
